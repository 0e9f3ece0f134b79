package controllers

import (
	"net/http"

	"github.com/angelmondragon/benefits-logistics/api/middleware"
	"github.com/angelmondragon/benefits-logistics/api/responses"
)

type pingResponse struct {
	Status   string               `json:"status"`
	Scope    string               `json:"scope"`
	Operator *middleware.Operator `json:"operator,omitempty"`
}

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingResponse{Status: "ok", Scope: "public"})
	}
}

// AdminPing echoes the caller so operators can check their token.
func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := pingResponse{Status: "ok", Scope: "admin"}
		if op, ok := middleware.OperatorFrom(r.Context()); ok {
			resp.Operator = &op
		}
		responses.WriteSuccess(w, resp)
	}
}
