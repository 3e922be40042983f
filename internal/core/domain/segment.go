package domain

// SessionTree is a resolved segment database rooted at one session.
type SessionTree struct {
	Name      string   `yaml:"name" json:"name"`
	RTEScript string   `yaml:"rte_script" json:"rte_script"`
	Segment   *Segment `yaml:"segment" json:"segment"`
}

// Segment groups applications and nested segments.
type Segment struct {
	Name         string         `yaml:"name" json:"name"`
	Applications []*Application `yaml:"applications" json:"applications"`
	Segments     []*Segment     `yaml:"segments" json:"segments"`
}

type Application struct {
	Name string            `yaml:"name" json:"name"`
	Type string            `yaml:"type" json:"type"`
	Args string            `yaml:"args" json:"args"`
	Env  map[string]string `yaml:"env" json:"env"`
	Host string            `yaml:"host" json:"host"`
}

// Walk visits applications depth first: a segment's own applications,
// then each sub-segment in order.
func (s *Segment) Walk(fn func(*Application) bool) bool {
	if s == nil {
		return true
	}
	for _, app := range s.Applications {
		if !fn(app) {
			return false
		}
	}
	for _, sub := range s.Segments {
		if !sub.Walk(fn) {
			return false
		}
	}
	return true
}
