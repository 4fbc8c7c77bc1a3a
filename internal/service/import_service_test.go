package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/surveyops/review-api/internal/models"
	"github.com/surveyops/review-api/internal/workflow"
	"github.com/surveyops/review-api/pkg/surveyapi"
)

type fakeSourceClient struct {
	responses []surveyapi.Response
	since     time.Time
	err       error
}

func (f *fakeSourceClient) FetchResponses(_ context.Context, since time.Time) ([]surveyapi.Response, error) {
	f.since = since
	return f.responses, f.err
}

func TestImportServiceCreatesRecords(t *testing.T) {
	source := &fakeSourceClient{responses: []surveyapi.Response{
		{SurveyID: "svy-1", ResponseID: "rsp-1", Answers: map[string]interface{}{"q1": "yes", "q2": 4}},
		{SurveyID: "svy-1", ResponseID: "rsp-2", Answers: map[string]interface{}{"q1": "no"}},
	}}
	records := newFakeRecordRepo()
	audits := &fakeAuditLogRepo{}

	svc, err := NewImportService(source, records, audits, testReviewers(), testLogger())
	require.NoError(t, err)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ImportSummary{Fetched: 2, Created: 2}, summary)
	require.Len(t, records.created, 2)

	created := records.created[0]
	require.NotEmpty(t, created.ID)
	require.Equal(t, string(workflow.StatePendingInterviewer), created.Status)
	require.EqualValues(t, 1, created.AssignedUserID)
	require.Equal(t, "yes", created.Data["q1"])

	require.Len(t, audits.entries, 2)
	require.Equal(t, models.AuditActionImported, audits.entries[0].Action)
	require.Equal(t, string(workflow.StatePendingInterviewer), audits.entries[0].NewValue)
}

func TestImportServiceSkipsAlreadyImported(t *testing.T) {
	records := newFakeRecordRepo(models.ReviewRecord{
		ID:         "existing",
		SurveyID:   "svy-1",
		ResponseID: "rsp-1",
		Status:     string(workflow.StateFinalized),
	})
	source := &fakeSourceClient{responses: []surveyapi.Response{
		{SurveyID: "svy-1", ResponseID: "rsp-1", Answers: map[string]interface{}{"q1": "dupe"}},
		{SurveyID: "svy-1", ResponseID: "rsp-2", Answers: map[string]interface{}{"q1": "fresh"}},
	}}

	svc, err := NewImportService(source, records, &fakeAuditLogRepo{}, testReviewers(), testLogger())
	require.NoError(t, err)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ImportSummary{Fetched: 2, Created: 1, Skipped: 1}, summary)

	// The finalized duplicate is untouched.
	require.Equal(t, string(workflow.StateFinalized), records.records["existing"].Status)
}

func TestImportServiceRejectsInvalidPayloads(t *testing.T) {
	source := &fakeSourceClient{responses: []surveyapi.Response{
		{SurveyID: "svy-1", ResponseID: "rsp-1"},
		{SurveyID: "svy-1", ResponseID: "rsp-2", Answers: map[string]interface{}{}},
		{SurveyID: "svy-1", ResponseID: "rsp-3", Answers: map[string]interface{}{
			"q1": map[string]interface{}{"nested": "object"},
		}},
		{SurveyID: "", ResponseID: "rsp-4", Answers: map[string]interface{}{"q1": "ok"}},
	}}
	records := newFakeRecordRepo()

	svc, err := NewImportService(source, records, &fakeAuditLogRepo{}, testReviewers(), testLogger())
	require.NoError(t, err)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ImportSummary{Fetched: 4, Invalid: 4}, summary)
	require.Empty(t, records.created)
}

func TestImportServiceSanitizesFreeText(t *testing.T) {
	source := &fakeSourceClient{responses: []surveyapi.Response{
		{SurveyID: "svy-1", ResponseID: "rsp-1", Answers: map[string]interface{}{
			"comment": `<script>alert("x")</script>fine overall`,
			"rating":  5,
		}},
	}}
	records := newFakeRecordRepo()

	svc, err := NewImportService(source, records, &fakeAuditLogRepo{}, testReviewers(), testLogger())
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records.created, 1)
	require.Equal(t, "fine overall", records.created[0].Data["comment"])
	require.EqualValues(t, 5, records.created[0].Data["rating"])
}

func TestImportServiceFetchWindowStartsAtNewestRecord(t *testing.T) {
	records := newFakeRecordRepo()
	older := models.ReviewRecord{ID: "a", SurveyID: "svy-1", ResponseID: "rsp-a", Status: string(workflow.StateFinalized)}
	newer := models.ReviewRecord{ID: "b", SurveyID: "svy-1", ResponseID: "rsp-b", Status: string(workflow.StatePendingInterviewer)}
	require.NoError(t, records.Create(context.Background(), &older))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, records.Create(context.Background(), &newer))

	source := &fakeSourceClient{}
	svc, err := NewImportService(source, records, &fakeAuditLogRepo{}, testReviewers(), testLogger())
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, records.records["b"].CreatedAt, source.since)
}
