package domain

// ExecAndArgs is one executable step of a process description.
type ExecAndArgs struct {
	Exec string   `cbor:"exec" json:"exec"`
	Args []string `cbor:"args" json:"args"`
}

type ProcessMetadata struct {
	UUID    string `cbor:"uuid,omitempty" json:"uuid,omitempty"`
	User    string `cbor:"user" json:"user"`
	Session string `cbor:"session" json:"session"`
	Name    string `cbor:"name" json:"name"`
}

type ProcessDescription struct {
	Metadata               ProcessMetadata   `cbor:"metadata" json:"metadata"`
	ExecutableAndArguments []ExecAndArgs     `cbor:"executable_and_arguments" json:"executable_and_arguments"`
	Env                    map[string]string `cbor:"env" json:"env"`
}

type ProcessRestriction struct {
	AllowedHosts []string `cbor:"allowed_hosts" json:"allowed_hosts"`
}

// BootRequest is one normalized process to launch.
type BootRequest struct {
	ProcessDescription ProcessDescription `cbor:"process_description" json:"process_description"`
	ProcessRestriction ProcessRestriction `cbor:"process_restriction" json:"process_restriction"`
}

func (BootRequest) PayloadKind() string { return "BootRequest" }

// ProcessQuery selects a subset of managed processes. Empty fields match everything.
type ProcessQuery struct {
	Session string   `cbor:"session,omitempty" json:"session,omitempty"`
	Names   []string `cbor:"names,omitempty" json:"names,omitempty"`
	User    string   `cbor:"user,omitempty" json:"user,omitempty"`
	UUIDs   []string `cbor:"uuids,omitempty" json:"uuids,omitempty"`
}

func (ProcessQuery) PayloadKind() string { return "ProcessQuery" }

// IsEmpty reports whether the query carries no selector at all.
func (q ProcessQuery) IsEmpty() bool {
	return q.Session == "" && q.User == "" && len(q.Names) == 0 && len(q.UUIDs) == 0
}

type ProcessStatus string

const (
	ProcessRunning ProcessStatus = "RUNNING"
	ProcessDead    ProcessStatus = "DEAD"
)

type ProcessInstance struct {
	ProcessDescription ProcessDescription `cbor:"process_description" json:"process_description"`
	ProcessRestriction ProcessRestriction `cbor:"process_restriction" json:"process_restriction"`
	StatusCode         ProcessStatus      `cbor:"status_code" json:"status_code"`
	ReturnCode         int32              `cbor:"return_code" json:"return_code"`
	UUID               string             `cbor:"uuid" json:"uuid"`
}

func (ProcessInstance) PayloadKind() string { return "ProcessInstance" }

type ProcessInstanceList struct {
	Values []*ProcessInstance `cbor:"values" json:"values"`
}

func (ProcessInstanceList) PayloadKind() string { return "ProcessInstanceList" }

type LogRequest struct {
	Query  ProcessQuery `cbor:"query" json:"query"`
	HowFar int32        `cbor:"how_far" json:"how_far"`
}

func (LogRequest) PayloadKind() string { return "LogRequest" }

// LogLine is one unit of streamed process output.
type LogLine struct {
	UUID string `cbor:"uuid" json:"uuid"`
	Line string `cbor:"line" json:"line"`
}

func (LogLine) PayloadKind() string { return "LogLine" }

// Description is the capability/version record of a remote endpoint.
type Description struct {
	Type    string `cbor:"type" json:"type"`
	Name    string `cbor:"name" json:"name"`
	Session string `cbor:"session,omitempty" json:"session,omitempty"`
	Info    string `cbor:"info,omitempty" json:"info,omitempty"`
}

func (Description) PayloadKind() string { return "Description" }
