package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/platform"
)

// readScopes returns the scope filter of a read. No scope means all.
func readScopes(r *http.Request) ([]metadata.Scope, error) {
	text := r.URL.Query().Get("scope")
	if text == "" {
		return nil, nil
	}
	scope, err := metadata.ParseScope(text)
	if err != nil {
		return nil, err
	}
	return []metadata.Scope{scope}, nil
}

// writeScope returns the scope of a write, defaulting to user.
func writeScope(r *http.Request) (metadata.Scope, error) {
	text := r.URL.Query().Get("scope")
	if text == "" {
		return metadata.User, nil
	}
	return metadata.ParseScope(text)
}

func (s *Server) getMetadata(id resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scopes, err := readScopes(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		records, err := s.catalog.GetMetadata(r.Context(), id(r), scopes...)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (s *Server) removeMetadata(id resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := writeScope(r)
		if err == nil {
			err = s.catalog.RemoveMetadata(r.Context(), id(r), scope)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) getProperties(id resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scopes, err := readScopes(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		props, err := s.catalog.GetProperties(r.Context(), id(r), scopes...)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, props)
	}
}

func (s *Server) addProperties(id resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := writeScope(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var props map[string]string
		if err := decode(r, &props); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.catalog.AddProperties(r.Context(), id(r), scope, props); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// removeProperties removes one key when addressed by path, otherwise all.
func (s *Server) removeProperties(id resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := writeScope(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var keys []string
		if key := chi.URLParam(r, "key"); key != "" {
			keys = append(keys, key)
		}
		if err := s.catalog.RemoveProperties(r.Context(), id(r), scope, keys...); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) getTags(id resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scopes, err := readScopes(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		tags, err := s.catalog.GetTags(r.Context(), id(r), scopes...)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

func (s *Server) addTags(id resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := writeScope(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var tags []string
		if err := decode(r, &tags); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.catalog.AddTags(r.Context(), id(r), scope, tags...); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) removeTags(id resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := writeScope(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var tags []string
		if tag := chi.URLParam(r, "tag"); tag != "" {
			tags = append(tags, tag)
		}
		if err := s.catalog.RemoveTags(r.Context(), id(r), scope, tags...); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results, err := s.catalog.Search(r.Context(), namespaceOf(r), q.Get("query"), q.Get("target"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces, err := s.lifecycle.Namespaces(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, namespaces)
}

func (s *Server) createNamespace(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.lifecycle.CreateNamespace(r.Context(), namespaceOf(r)))
}

func (s *Server) deleteNamespace(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.lifecycle.DeleteNamespace(r.Context(), namespaceOf(r)))
}

func (s *Server) deployApplication(w http.ResponseWriter, r *http.Request) {
	var spec platform.ApplicationSpec
	if err := decodeOptional(r, &spec); err != nil {
		s.writeError(w, r, err)
		return
	}
	spec.Name = param(r, "app")
	if _, err := s.lifecycle.DeployApplication(r.Context(), namespaceOf(r), spec); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	spec, err := s.lifecycle.Application(r.Context(), application(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (s *Server) deleteApplication(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.lifecycle.DeleteApplication(r.Context(), application(r)))
}

func (s *Server) createStream(w http.ResponseWriter, r *http.Request) {
	var spec platform.StreamSpec
	if err := decodeOptional(r, &spec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, s.lifecycle.CreateStream(r.Context(), stream(r), spec))
}

type streamProperties struct {
	TTL    int64  `json:"ttl"`
	Schema string `json:"schema"`
}

func (s *Server) updateStreamProperties(w http.ResponseWriter, r *http.Request) {
	var props streamProperties
	if err := decode(r, &props); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, s.lifecycle.UpdateStreamProperties(r.Context(), stream(r), props.TTL, props.Schema))
}

func (s *Server) deleteStream(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.lifecycle.DeleteStream(r.Context(), stream(r)))
}

func (s *Server) createView(w http.ResponseWriter, r *http.Request) {
	var spec platform.ViewSpec
	if err := decode(r, &spec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, s.lifecycle.CreateView(r.Context(), stream(r).View(param(r, "view")), spec))
}

func (s *Server) deleteView(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.lifecycle.DeleteView(r.Context(), stream(r).View(param(r, "view"))))
}

func (s *Server) createDataset(w http.ResponseWriter, r *http.Request) {
	var spec platform.DatasetSpec
	if err := decode(r, &spec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, s.lifecycle.CreateDataset(r.Context(), dataset(r), spec))
}

func (s *Server) deleteDataset(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.lifecycle.DeleteDataset(r.Context(), dataset(r)))
}

func (s *Server) addArtifact(w http.ResponseWriter, r *http.Request) {
	var spec platform.ArtifactSpec
	if err := decodeOptional(r, &spec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, s.lifecycle.AddArtifact(r.Context(), artifact(r), spec))
}

func (s *Server) deleteArtifact(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.lifecycle.DeleteArtifact(r.Context(), artifact(r)))
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
