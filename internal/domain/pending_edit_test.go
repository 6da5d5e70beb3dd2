package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChanges() ChangeSet {
	return ChangeSet{Sections: []SectionChanges{{
		Key:  SectionConfiguration,
		Diff: SectionDiff{{Field: "band_4g", Change: FieldChange{Old: "1800", OldPresent: true, New: "800+1800"}}},
	}}}
}

func TestBuildSubmission_NoChanges(t *testing.T) {
	_, err := BuildSubmission(TargetTypeSite, "KTM001", ChangeSet{Comment: "  "}, uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoChanges))
	assert.Equal(t, KindNoChanges, KindOf(err))
}

func TestBuildSubmission_CommentOnly(t *testing.T) {
	submission, err := BuildSubmission(TargetTypeSite, "KTM001", ChangeSet{Comment: "  please verify landowner  "}, uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "please verify landowner", submission.Changes.Comment)
	assert.Empty(t, submission.Changes.Sections)
}

func TestBuildSubmission_Success(t *testing.T) {
	requester := uuid.New()
	name := " Baneshwor "
	changes := sampleChanges()
	changes.Comment = "band upgrade"

	submission, err := BuildSubmission(TargetTypeSite, "KTM001", changes, requester, &name)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, submission.Status)
	assert.Equal(t, requester, submission.RequestedBy)
	assert.Equal(t, "KTM001", submission.TargetID)
	assert.Equal(t, TargetTypeSite, submission.TargetType)
	require.NotNil(t, submission.TargetName)
	assert.Equal(t, "Baneshwor", *submission.TargetName)
	assert.Equal(t, "band upgrade", submission.Changes.Comment)
	assert.Len(t, submission.Changes.Sections, 1)
}

func TestBuildSubmission_RequiresTargetAndRequester(t *testing.T) {
	_, err := BuildSubmission("", "KTM001", sampleChanges(), uuid.New(), nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = BuildSubmission(TargetTypeSite, "KTM001", sampleChanges(), uuid.Nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestParseReviewAction(t *testing.T) {
	cases := map[string]ReviewAction{
		"approve":  ActionApprove,
		"approved": ActionApprove,
		"Reject":   ActionReject,
		"deleted":  ActionDelete,
	}
	for raw, want := range cases {
		got, err := ParseReviewAction(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseReviewAction("archive")
	assert.Error(t, err)

	assert.Equal(t, StatusApproved, ActionApprove.TargetStatus())
	assert.Equal(t, StatusRejected, ActionReject.TargetStatus())
	assert.Equal(t, StatusDeleted, ActionDelete.TargetStatus())
}

func TestStatusFilter(t *testing.T) {
	filter, err := ParseStatusFilter("")
	require.NoError(t, err)
	assert.True(t, filter.Matches(StatusPending))
	assert.False(t, filter.Matches(StatusApproved))

	all, err := ParseStatusFilter("ALL")
	require.NoError(t, err)
	for _, status := range []EditStatus{StatusPending, StatusApproved, StatusRejected, StatusDeleted} {
		assert.True(t, all.Matches(status))
	}

	_, err = ParseStatusFilter("stale")
	assert.Error(t, err)
}

func TestWorkflowErrorMatching(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindPersistence, "submit edit", cause)

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.False(t, errors.Is(err, ErrApply))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "submit edit: failed to persist pending edit: connection reset", err.Error())
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}

func TestChangeSummary(t *testing.T) {
	changes := sampleChanges()
	changes.Sections = append(changes.Sections, SectionChanges{Key: SectionPower, Diff: SectionDiff{{Field: "a"}, {Field: "b"}}})
	assert.Equal(t, "site configuration (1 fields), site power (2 fields)", ChangeSummary(changes))
	assert.Equal(t, "Comment added.", ChangeSummary(ChangeSet{Comment: "note"}))
	assert.Equal(t, "No changes listed.", ChangeSummary(ChangeSet{}))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Sita", DisplayName("Sita Sharma", "sita@example.com"))
	assert.Equal(t, "ram", DisplayName("", "ram.bahadur@example.com"))
	assert.Equal(t, "hari", DisplayName("", "hari_k@example.com"))
	assert.Equal(t, "Gita", DisplayName("", "gita@example.com"))
	assert.Equal(t, "Unknown", DisplayName("", ""))
	assert.Equal(t, "Unknown", DisplayName("", "Error fetching profile"))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Editor ")
	require.NoError(t, err)
	assert.Equal(t, RoleEditor, role)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}
