package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nainya/metacatalog/pkg/entity"
)

// resolver builds the entity reference addressed by a request path
type resolver func(r *http.Request) entity.ID

func param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func namespaceOf(r *http.Request) string { return param(r, "namespace") }

func application(r *http.Request) entity.Application {
	return entity.Application{Namespace: namespaceOf(r), Name: param(r, "app")}
}

func stream(r *http.Request) entity.Stream {
	return entity.Stream{Namespace: namespaceOf(r), Name: param(r, "stream")}
}

func dataset(r *http.Request) entity.Dataset {
	return entity.Dataset{Namespace: namespaceOf(r), Name: param(r, "dataset")}
}

func artifact(r *http.Request) entity.Artifact {
	return entity.Artifact{Namespace: namespaceOf(r), Name: param(r, "artifact"), Version: param(r, "version")}
}

func program(t entity.ProgramType) resolver {
	return func(r *http.Request) entity.ID {
		return application(r).Program(t, param(r, "program"))
	}
}

func (s *Server) routes(r chi.Router) {
	r.Get("/namespaces", s.listNamespaces)

	r.Route("/namespaces/{namespace}", func(r chi.Router) {
		r.Put("/", s.createNamespace)
		r.Delete("/", s.deleteNamespace)
		r.Get("/metadata/search", s.search)

		r.Route("/apps/{app}", func(r chi.Router) {
			r.Put("/", s.deployApplication)
			r.Get("/", s.getApplication)
			r.Delete("/", s.deleteApplication)
			s.metadataRoutes(r, func(r *http.Request) entity.ID { return application(r) })
			for _, t := range entity.ProgramTypes() {
				r.Route("/"+t.Category()+"/{program}", func(r chi.Router) {
					s.metadataRoutes(r, program(t))
				})
			}
		})

		r.Route("/streams/{stream}", func(r chi.Router) {
			r.Put("/", s.createStream)
			r.Delete("/", s.deleteStream)
			r.Put("/properties", s.updateStreamProperties)
			s.metadataRoutes(r, func(r *http.Request) entity.ID { return stream(r) })
			r.Route("/views/{view}", func(r chi.Router) {
				r.Put("/", s.createView)
				r.Delete("/", s.deleteView)
				s.metadataRoutes(r, func(r *http.Request) entity.ID { return stream(r).View(param(r, "view")) })
			})
		})

		r.Route("/datasets/{dataset}", func(r chi.Router) {
			r.Put("/", s.createDataset)
			r.Delete("/", s.deleteDataset)
			s.metadataRoutes(r, func(r *http.Request) entity.ID { return dataset(r) })
		})

		r.Route("/artifacts/{artifact}/versions/{version}", func(r chi.Router) {
			r.Put("/", s.addArtifact)
			r.Delete("/", s.deleteArtifact)
			s.metadataRoutes(r, func(r *http.Request) entity.ID { return artifact(r) })
		})
	})
}

// metadataRoutes registers the metadata routes of one entity path
func (s *Server) metadataRoutes(r chi.Router, id resolver) {
	r.Route("/metadata", func(r chi.Router) {
		r.Get("/", s.getMetadata(id))
		r.Delete("/", s.removeMetadata(id))

		r.Get("/properties", s.getProperties(id))
		r.Post("/properties", s.addProperties(id))
		r.Delete("/properties", s.removeProperties(id))
		r.Delete("/properties/{key}", s.removeProperties(id))

		r.Get("/tags", s.getTags(id))
		r.Post("/tags", s.addTags(id))
		r.Delete("/tags", s.removeTags(id))
		r.Delete("/tags/{tag}", s.removeTags(id))
	})
}
