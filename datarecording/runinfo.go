package datarecording

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RunInfoTable is the table that run metadata is written to.
const RunInfoTable = "run_info"

type runInfoEntry struct {
	Property string
	Value    string
}

// RunInfo records metadata about the process being introspected.
type RunInfo struct {
	recorder DataRecorder
	entries  []runInfoEntry
}

// NewRunInfo creates a RunInfo that writes into recorder.
func NewRunInfo(recorder DataRecorder) *RunInfo {
	recorder.CreateTable(RunInfoTable, runInfoEntry{})

	return &RunInfo{recorder: recorder}
}

// Start notes the start time, the command line and the process identity.
func (r *RunInfo) Start() {
	r.add("Start Time", now())
	r.add("Command", strings.Join(os.Args, " "))

	pid := os.Getpid()
	r.add("PID", strconv.Itoa(pid))

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}

	if name, err := p.Name(); err == nil {
		r.add("Process Name", name)
	}

	if mem, err := p.MemoryInfo(); err == nil {
		r.add("Start RSS", strconv.FormatUint(mem.RSS, 10))
	}
}

// Set notes a custom property.
func (r *RunInfo) Set(property, value string) {
	r.add(property, value)
}

// End writes all notes along with the end time.
func (r *RunInfo) End() {
	r.add("End Time", now())

	for _, e := range r.entries {
		r.recorder.InsertData(RunInfoTable, e)
	}

	r.entries = nil

	r.recorder.Flush()
}

func (r *RunInfo) add(property, value string) {
	r.entries = append(r.entries, runInfoEntry{Property: property, Value: value})
}

func now() string {
	return time.Now().Format("2006-01-02 15:04:05.000000000")
}
