package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// mutationRequest is the body of every balance operation.
type mutationRequest struct {
	Amount    types.Amount           `json:"amount"`
	To        string                 `json:"to,omitempty"`
	Legs      []treasury.TransferLeg `json:"legs,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	ContextID string                 `json:"context_id,omitempty"`
}

func (m mutationRequest) options() []treasury.MutationOption {
	var opts []treasury.MutationOption
	if m.TraceID != "" {
		opts = append(opts, treasury.WithTraceID(m.TraceID))
	}
	if m.ContextID != "" {
		opts = append(opts, treasury.WithContextID(m.ContextID))
	}
	return opts
}

type mutationResponse struct {
	Account *account.Account `json:"account"`
	Trace   *trace.Trace     `json:"trace"`
}

func decodeMutation(r *http.Request) (mutationRequest, error) {
	var req mutationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %w", treasury.ErrInvalidInput, err)
	}
	return req, nil
}

// HandleGetAccount returns the owner's account.
func (s *Server) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.engine.GetAccount(r.Context(), mux.Vars(r)["owner"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleOpenAccount registers the owner with zero balances.
func (s *Server) HandleOpenAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.engine.OpenAccount(r.Context(), mux.Vars(r)["owner"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleDeleteAccount soft-deletes the owner's account.
func (s *Server) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteAccount(r.Context(), mux.Vars(r)["owner"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMutation applies a local balance operation named by the path.
func (s *Server) HandleMutation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req, err := decodeMutation(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	acct, tr, err := s.engine.Apply(r.Context(), vars["owner"], trace.Operation(vars["operation"]), req.Amount, req.options()...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Account: acct, Trace: tr})
}

// HandleTransfer sends tokens to one recipient through the gateway.
func (s *Server) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMutation(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	acct, tr, err := s.engine.Transfer(r.Context(), mux.Vars(r)["owner"], req.To, req.Amount, req.options()...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Account: acct, Trace: tr})
}

// HandleBatchTransfer runs an all-or-nothing batch. A rolled back batch
// answers with the error status and still carries the result.
func (s *Server) HandleBatchTransfer(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMutation(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.engine.BatchTransfer(r.Context(), mux.Vars(r)["owner"], req.Legs, req.options()...)
	if err != nil {
		if res == nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, statusFor(err), map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}
