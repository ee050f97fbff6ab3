package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dyluth/warren/internal/build"
	"github.com/dyluth/warren/internal/llm"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/task"
	"github.com/dyluth/warren/internal/workspace"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/spf13/afero"
)

const (
	todoScope = `{"is_crud_required": true, "is_user_login_and_logout": false, "is_external_urls_required": false}`
	urlScope  = `{"is_crud_required": false, "is_user_login_and_logout": false, "is_external_urls_required": true}`

	todoSchema = `[
  {"path": "/todos", "method": "GET", "description": "list todos"},
  {"path": "/todos/{id}", "method": "GET", "description": "get one todo"},
  {"path": "/todos", "method": "POST", "description": "create a todo", "request_body": {"title": "x"}}
]`
)

// scriptedLLM answers each task kind from its own reply queue. The last
// reply of a queue repeats once the queue is drained.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  map[task.Kind][]string
	calls    map[task.Kind]int
	requests map[task.Kind][][]llm.Message
}

func newScriptedLLM(replies map[task.Kind][]string) *scriptedLLM {
	return &scriptedLLM{
		replies:  replies,
		calls:    map[task.Kind]int{},
		requests: map[task.Kind][][]llm.Message{},
	}
}

func (s *scriptedLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := kindOf(messages)
	queue := s.replies[kind]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted reply for %q", kind)
	}
	n := s.calls[kind]
	s.calls[kind] = n + 1
	s.requests[kind] = append(s.requests[kind], messages)
	if n >= len(queue) {
		n = len(queue) - 1
	}
	return queue[n], nil
}

func (s *scriptedLLM) callCount(kind task.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

func (s *scriptedLLM) lastRequest(kind task.Kind) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := s.requests[kind]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// kindOf finds the task a conversation was extended with.
func kindOf(messages []llm.Message) task.Kind {
	for i := len(messages) - 1; i >= 0; i-- {
		for _, k := range task.Kinds() {
			if strings.Contains(messages[i].Content, k.Instruction()) {
				return k
			}
		}
	}
	return ""
}

type memJournal struct {
	mu      sync.Mutex
	entries []blackboard.Entry
}

func (j *memJournal) Record(_ context.Context, e blackboard.Entry) (*blackboard.Artefact, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return &blackboard.Artefact{ID: fmt.Sprintf("a%d", len(j.entries)), Type: e.Type, Version: 1}, nil
}

func (j *memJournal) types() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.Type
	}
	return out
}

type consoleLine struct {
	position  string
	statement string
	kind      printer.Command
}

type memConsole struct {
	mu    sync.Mutex
	lines []consoleLine
}

func (c *memConsole) Agent(position, statement string, kind printer.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, consoleLine{position, statement, kind})
}

// urlChecker answers by full URL; unknown URLs are 404. A status sequence
// advances on every call and repeats its last value.
type urlChecker struct {
	mu       sync.Mutex
	statuses map[string][]int
	errs     map[string]error
	calls    []string
}

func (c *urlChecker) Status(_ context.Context, url string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, u := range c.calls {
		if u == url {
			n++
		}
	}
	c.calls = append(c.calls, url)
	if err := c.errs[url]; err != nil {
		return 0, err
	}
	seq := c.statuses[url]
	if len(seq) == 0 {
		return 404, nil
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return seq[n], nil
}

type stubBuilder struct {
	mu       sync.Mutex
	results  []build.Result
	startErr error
	builds   int
	starts   int
	stops    int
}

func (b *stubBuilder) Build(context.Context) (build.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.builds
	b.builds++
	if len(b.results) == 0 {
		return build.Result{Success: true}, nil
	}
	if i >= len(b.results) {
		i = len(b.results) - 1
	}
	return b.results[i], nil
}

func (b *stubBuilder) Start(context.Context) (build.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	if b.startErr != nil {
		return nil, b.startErr
	}
	return &stubHandle{b: b}, nil
}

type stubHandle struct {
	b *stubBuilder
}

func (h *stubHandle) BaseURL() string { return "http://service.test" }

func (h *stubHandle) Stop(context.Context) error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	h.b.stops++
	return nil
}

func passingChecker() *urlChecker {
	return &urlChecker{statuses: map[string][]int{
		"http://service.test/todos":   {200},
		"http://service.test/todos/1": {200},
	}}
}

func newEnv(t *testing.T, llmStub *scriptedLLM) (Env, *memJournal, *memConsole) {
	t.Helper()
	journal := &memJournal{}
	console := &memConsole{}
	return Env{
		Decoder: task.NewDecoder(llmStub, task.Options{Reprompt: true}),
		Console: console,
		Journal: journal,
	}, journal, console
}

func newStore(t *testing.T) *workspace.FS {
	t.Helper()
	store := workspace.NewFS(afero.NewMemMapFs(), "/project")
	if err := store.Write("web_template/src/code_template.rs", "fn main() {}\n"); err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}
	return store
}

var testPaths = Paths{
	Template:       "web_template/src/code_template.rs",
	BackendCode:    "web_template/src/main.rs",
	EndpointSchema: "schemas/api_schema.json",
}

// readyRecord returns a record as the backend developer leaves it.
func readyRecord(t *testing.T, code string) *blackboard.ProjectRecord {
	t.Helper()
	record := blackboard.NewProjectRecord("build a todo list api")
	routes := blackboard.EndpointSchema{
		{Path: "/todos", Method: "GET"},
		{Path: "/todos/{id}", Method: "GET"},
		{Path: "/todos", Method: "POST"},
	}
	if err := record.SetScope(blackboard.ProjectScope{IsCRUDRequired: true}); err != nil {
		t.Fatal(err)
	}
	if err := record.SetBackendCode(code); err != nil {
		t.Fatal(err)
	}
	if err := record.SetEndpointSchema(routes); err != nil {
		t.Fatal(err)
	}
	return record
}
