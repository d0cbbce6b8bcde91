package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/types"
)

// templateTypeParam parses the required type query parameter.
func templateTypeParam(r *http.Request) (types.TemplateType, error) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		return "", apperrors.Validationf("type parameter is required")
	}
	return types.ParseTemplateType(raw)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tplType, err := templateTypeParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	env := environmentOrDefault(r.URL.Query().Get("environment"))

	tpl, err := s.generator.Generate(svc.ID, tplType, env)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadServiceForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	env := environmentOrDefault(r.URL.Query().Get("environment"))

	templates, err := s.generator.GenerateAll(svc.ID, env)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, templates)
}

func (s *Server) handleSolutionCompose(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadSolutionForWrite(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	env := environmentOrDefault(r.URL.Query().Get("environment"))

	tpl, err := s.generator.SolutionCompose(view.Solution.ID, env)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tplType, err := templateTypeParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	env := environmentOrDefault(r.URL.Query().Get("environment"))

	tpl, err := s.generator.GetTemplate(svc.ID, tplType, env)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	svc, err := s.loadService(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	templates, err := s.generator.ListTemplates(svc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplateByID(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.generator.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireRead(principal(r), tpl.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.generator.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.RequireWrite(principal(r), tpl.TeamID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.generator.DeleteTemplate(tpl.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
