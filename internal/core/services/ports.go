package services

// BasePort is the first port handed out on every host.
const BasePort = 9000

// PortAllocator hands out increasing ports, counted independently per host.
type PortAllocator struct {
	base int
	next map[string]int
}

func NewPortAllocator(base int) *PortAllocator {
	return &PortAllocator{
		base: base,
		next: make(map[string]int),
	}
}

// Next returns the next free port on host.
func (a *PortAllocator) Next(host string) int {
	port, ok := a.next[host]
	if !ok {
		port = a.base
	}
	a.next[host] = port + 1
	return port
}
