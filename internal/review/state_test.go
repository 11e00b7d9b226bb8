package review

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatrisk/internal/verdict"
)

func riskyVerdict() *verdict.Verdict {
	return &verdict.Verdict{
		Score:   50,
		IsRisk:  true,
		Summary: "发现 1 处异常",
		Checkpoints: []verdict.Checkpoint{
			{Point: 50, Type: verdict.CategoryAgentMisconduct, Reason: "命中[引导线下/私下交易]", Text: "加我微信"},
		},
		HighlightIndices: []int{3},
	}
}

func TestApplyTransitions(t *testing.T) {
	tests := []struct {
		action       Action
		wantStatus   verdict.ReviewStatus
		wantRisk     bool
		wantScore    int
		wantReviewed bool
	}{
		{ActionSubmitAppeal, verdict.ReviewPending, true, 50, true},
		{ActionConfirmRisk, verdict.ReviewConfirmed, true, 50, true},
		{ActionApprove, verdict.ReviewApproved, false, 100, true},
		{ActionReject, verdict.ReviewRejected, true, 50, true},
		{ActionReset, verdict.ReviewNone, true, 50, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			v := riskyVerdict()
			require.NoError(t, Apply(v, tt.action))
			assert.Equal(t, tt.wantStatus, v.ReviewStatus)
			assert.Equal(t, tt.wantRisk, v.IsRisk)
			assert.Equal(t, tt.wantScore, v.Score)
			assert.Equal(t, tt.wantReviewed, v.ManualReviewed)
			assert.Equal(t, riskyVerdict().Checkpoints, v.Checkpoints)
			assert.Equal(t, []int{3}, v.HighlightIndices)

			again := v.Clone()
			require.NoError(t, Apply(again, tt.action))
			assert.Equal(t, v, again, "applying twice yields the same state")
		})
	}
}

func TestApproveThenRejectRestoresScore(t *testing.T) {
	v := riskyVerdict()
	require.NoError(t, Apply(v, ActionApprove))
	require.NoError(t, Apply(v, ActionApprove))
	require.NotNil(t, v.OriginalScore)
	assert.Equal(t, 50, *v.OriginalScore, "snapshot is not overwritten by a second approval")

	require.NoError(t, Apply(v, ActionReject))
	assert.Equal(t, 50, v.Score)
	assert.Equal(t, verdict.ReviewRejected, v.ReviewStatus)
}

func TestResetAfterAnySequence(t *testing.T) {
	sequences := [][]Action{
		{ActionApprove},
		{ActionSubmitAppeal, ActionApprove, ActionConfirmRisk},
		{ActionApprove, ActionReject, ActionApprove},
		{ActionConfirmRisk},
	}
	for _, seq := range sequences {
		v := riskyVerdict()
		for _, a := range seq {
			require.NoError(t, Apply(v, a))
		}
		require.NoError(t, Apply(v, ActionReset))
		assert.Equal(t, verdict.ReviewNone, v.ReviewStatus)
		assert.False(t, v.ManualReviewed)
		assert.Equal(t, 50, v.Score, "sequence %v", seq)
	}
}

func TestRejectWithoutSnapshotKeepsScore(t *testing.T) {
	v := riskyVerdict()
	require.NoError(t, Apply(v, ActionReject))
	assert.Equal(t, 50, v.Score)
	assert.Nil(t, v.OriginalScore)
}

func TestApplyUnknownActionLeavesVerdictUnchanged(t *testing.T) {
	v := riskyVerdict()
	require.NoError(t, Apply(v, ActionApprove))
	before, err := json.Marshal(v)
	require.NoError(t, err)

	err = Apply(v, Action("delete_everything"))
	assert.True(t, errors.Is(err, ErrInvalidAction))

	after, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" admin_reset ")
	require.NoError(t, err)
	assert.Equal(t, ActionReset, a)

	for _, raw := range []string{"", "ADMIN_RESET", "approve"} {
		_, err := ParseAction(raw)
		assert.True(t, errors.Is(err, ErrInvalidAction), raw)
	}
}
