package crawl

// CompletedSet holds the questions saved or verified during this run.
type CompletedSet map[string]struct{}

// Key identifies a question within the run.
func Key(assessment, question string) string {
	return assessment + "_" + question
}

func (s CompletedSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s CompletedSet) Add(key string) {
	s[key] = struct{}{}
}
