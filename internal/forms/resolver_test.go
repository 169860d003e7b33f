package forms

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mindwell-health/practice-platform/internal/config"
)

func makeSessions(n int) []SessionRef {
	out := make([]SessionRef, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, SessionRef{ID: uuid.New(), Position: i})
	}
	return out
}

func TestResolveStaticOrdinals(t *testing.T) {
	sessions := makeSessions(5)
	formID := uuid.New()

	got := Resolve(sessions, []Rule{
		{FormID: formID, Kind: RuleStatic, Positions: []int{1, 3}},
	})

	require.Len(t, got, 2)
	require.Contains(t, got, sessions[0].ID)
	require.Contains(t, got, sessions[2].ID)
	require.Equal(t, []uuid.UUID{formID}, got[sessions[0].ID])
}

func TestResolveDynamicStride(t *testing.T) {
	sessions := makeSessions(7)
	formID := uuid.New()

	got := Resolve(sessions, []Rule{
		{FormID: formID, Kind: RuleDynamic, Stride: 3},
	})

	// Every 3rd session starting at ordinal 3.
	require.Len(t, got, 2)
	require.Contains(t, got, sessions[2].ID)
	require.Contains(t, got, sessions[5].ID)
}

func TestResolveSymbolicPositions(t *testing.T) {
	sessions := makeSessions(4)
	tests := []struct {
		symbol string
		want   []int // expected ordinals
	}{
		{SymbolFirst, []int{1}},
		{SymbolLast, []int{4}},
		{SymbolSecondToLast, []int{3}},
		{SymbolEvery, []int{1, 2, 3, 4}},
		{"2", []int{2}},
		{"junk", nil},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			formID := uuid.New()
			got := Resolve(sessions, []Rule{{FormID: formID, Kind: RuleDynamic, Symbol: tt.symbol}})
			require.Len(t, got, len(tt.want))
			for _, ord := range tt.want {
				require.Contains(t, got, sessions[ord-1].ID, "ordinal %d", ord)
			}
		})
	}
}

func TestResolveSkipsReportSessions(t *testing.T) {
	sessions := makeSessions(3)
	report := SessionRef{ID: uuid.New(), Position: 2, IsReport: true}
	all := append(append([]SessionRef(nil), sessions...), report)

	got := Resolve(all, []Rule{
		{FormID: uuid.New(), Kind: RuleDynamic, Symbol: SymbolEvery},
	})

	require.Len(t, got, 3)
	require.NotContains(t, got, report.ID)
}

func TestResolveUnionsOverlappingRules(t *testing.T) {
	sessions := makeSessions(4)
	formA := uuid.New()
	formB := uuid.New()

	got := Resolve(sessions, []Rule{
		{FormID: formA, Kind: RuleStatic, Positions: []int{2}},
		{FormID: formB, Kind: RuleDynamic, Stride: 2},
		{FormID: formA, Kind: RuleDynamic, Symbol: "2"}, // duplicate of the static rule
	})

	require.ElementsMatch(t, []uuid.UUID{formA, formB}, got[sessions[1].ID],
		"session 2 should union both forms, deduplicated")
	require.Equal(t, []uuid.UUID{formB}, got[sessions[3].ID])
}

func TestResolveEmptyInputs(t *testing.T) {
	require.Empty(t, Resolve(nil, []Rule{{FormID: uuid.New(), Kind: RuleDynamic, Symbol: SymbolEvery}}))
	require.Empty(t, Resolve(makeSessions(3), nil))
}

func TestModalSourceModes(t *testing.T) {
	serviceID := uuid.New()
	target := "anxiety"
	serviceRule := Rule{FormID: uuid.New(), Kind: RuleStatic, Positions: []int{1}}
	targetRule := Rule{FormID: uuid.New(), Kind: RuleDynamic, Symbol: SymbolLast}

	byService := NewServiceMemorySource()
	byService.Put(serviceID, serviceRule)
	byTarget := NewTargetMemorySource()
	byTarget.Put(target, targetRule)

	q := Query{TenantID: uuid.New(), ServiceID: serviceID, TreatmentTarget: target}
	ctx := context.Background()

	t.Run("service mode", func(t *testing.T) {
		src := NewModalSource(config.FormRuleModeService, byService, byTarget)
		rules, err := src.RulesFor(ctx, q)
		require.NoError(t, err)
		require.Equal(t, []Rule{serviceRule}, rules)
	})

	t.Run("target mode", func(t *testing.T) {
		src := NewModalSource(config.FormRuleModeTreatmentTarget, byService, byTarget)
		rules, err := src.RulesFor(ctx, q)
		require.NoError(t, err)
		require.Equal(t, []Rule{targetRule}, rules)
	})

	t.Run("auto prefers target rows", func(t *testing.T) {
		src := NewModalSource(config.FormRuleModeAuto, byService, byTarget)
		rules, err := src.RulesFor(ctx, q)
		require.NoError(t, err)
		require.Equal(t, []Rule{targetRule}, rules)
	})

	t.Run("auto falls back to service", func(t *testing.T) {
		src := NewModalSource(config.FormRuleModeAuto, byService, byTarget)
		rules, err := src.RulesFor(ctx, Query{ServiceID: serviceID, TreatmentTarget: "unknown"})
		require.NoError(t, err)
		require.Equal(t, []Rule{serviceRule}, rules)
	})
}
