package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func request(status RequestStatus, holder string) *AIRequest {
	req := &AIRequest{ID: "req-1", Status: status}
	if holder != "" {
		req.AssignedAdminID = strPtr(holder)
	}
	return req
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		req     *AIRequest
		to      RequestStatus
		actor   string
		wantErr error
	}{
		{"claim unassigned", request(StatusPending, ""), StatusAssigned, "alice", nil},
		{"claim by system", request(StatusPending, ""), StatusAssigned, ActorSystem, ErrInvalidTransition},
		{"claim already held", request(StatusPending, "bob"), StatusAssigned, "alice", ErrInvalidTransition},
		{"release by holder", request(StatusAssigned, "alice"), StatusPending, "alice", nil},
		{"release by system", request(StatusAssigned, "alice"), StatusPending, ActorSystem, nil},
		{"release by other", request(StatusAssigned, "alice"), StatusPending, "bob", ErrNotAuthorized},
		{"start by holder", request(StatusAssigned, "alice"), StatusProcessing, "alice", nil},
		{"start by other", request(StatusAssigned, "alice"), StatusProcessing, "bob", ErrNotAuthorized},
		{"start by system", request(StatusAssigned, "alice"), StatusProcessing, ActorSystem, ErrInvalidTransition},
		{"complete by holder", request(StatusProcessing, "alice"), StatusCompleted, "alice", nil},
		{"complete by other", request(StatusProcessing, "alice"), StatusCompleted, "bob", ErrNotAuthorized},
		{"reject by holder", request(StatusProcessing, "alice"), StatusRejected, "alice", nil},
		{"fail assigned by anyone", request(StatusAssigned, "alice"), StatusFailed, "bob", nil},
		{"fail processing by system", request(StatusProcessing, "alice"), StatusFailed, ActorSystem, nil},
		{"expire pending by system", request(StatusPending, ""), StatusFailed, ActorSystem, nil},
		{"fail pending by operator", request(StatusPending, ""), StatusFailed, "alice", ErrInvalidTransition},
		{"complete skipping processing", request(StatusAssigned, "alice"), StatusCompleted, "alice", ErrInvalidTransition},
		{"pending to processing", request(StatusPending, ""), StatusProcessing, "alice", ErrInvalidTransition},
		{"leave completed", request(StatusCompleted, ""), StatusPending, ActorSystem, ErrInvalidTransition},
		{"leave rejected", request(StatusRejected, ""), StatusAssigned, "alice", ErrInvalidTransition},
		{"leave failed", request(StatusFailed, ""), StatusPending, ActorSystem, ErrInvalidTransition},
		{"self loop", request(StatusAssigned, "alice"), StatusAssigned, "alice", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.req, tt.to, tt.actor)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckTransition_TerminalReason(t *testing.T) {
	err := CheckTransition(request(StatusCompleted, ""), StatusFailed, ActorSystem)

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, StatusCompleted, ite.From)
	assert.Equal(t, StatusFailed, ite.To)
	assert.Contains(t, ite.Reason, "terminal")
}

func TestCheckTransition_NotAuthorizedNamesHolder(t *testing.T) {
	err := CheckTransition(request(StatusProcessing, "alice"), StatusCompleted, "bob")

	var nae *NotAuthorizedError
	require.True(t, errors.As(err, &nae))
	assert.Equal(t, "alice", nae.HolderID)
	assert.Equal(t, "bob", nae.AdminID)
}

func TestTransitions_NoEdgeLeavesTerminal(t *testing.T) {
	for _, tr := range Transitions() {
		assert.False(t, tr.From.IsTerminal(), "edge %s -> %s leaves a terminal state", tr.From, tr.To)
		assert.NotEqual(t, tr.From, tr.To)
	}
}

func TestParseRequestStatus(t *testing.T) {
	st, ok := ParseRequestStatus(" Processing ")
	assert.True(t, ok)
	assert.Equal(t, StatusProcessing, st)

	_, ok = ParseRequestStatus("done")
	assert.False(t, ok)
}

func TestParseRequestType(t *testing.T) {
	rt, ok := ParseRequestType("faq")
	assert.True(t, ok)
	assert.Equal(t, RequestTypeFAQ, rt)

	_, ok = ParseRequestType("PRICING")
	assert.False(t, ok)
}

func TestAIRequest_Validate(t *testing.T) {
	valid := AIRequest{CustomerID: "c1", RequestType: RequestTypeHero, RequestData: Document(`{"a":1}`)}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		mut   func(r *AIRequest)
		field string
	}{
		{"missing customer", func(r *AIRequest) { r.CustomerID = " " }, "customer_id"},
		{"missing type", func(r *AIRequest) { r.RequestType = "" }, "request_type"},
		{"unknown type", func(r *AIRequest) { r.RequestType = "BLOG" }, "request_type"},
		{"array data", func(r *AIRequest) { r.RequestData = Document(`[1,2]`) }, "request_data"},
		{"negative cost", func(r *AIRequest) { r.EstimatedCost = -1 }, "estimated_cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mut(&r)
			err := r.Validate()
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
