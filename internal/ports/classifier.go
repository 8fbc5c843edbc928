package ports

// Classifier decide si una pregunta es geopolítica y a qué cluster pertenece.
type Classifier interface {
	IsGeopolitical(question string) bool
	Cluster(question string) string
}
