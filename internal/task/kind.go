// Package task coerces LLM chat completions into typed values. Each task kind
// carries a fixed instruction; Extend wraps it with the caller's input into a
// system message and Decode parses the reply.
package task

import "fmt"

// Kind is a closed set of tasks the pipeline asks the LLM to perform.
type Kind string

const (
	ConvertUserInputToGoal   Kind = "convert_user_input_to_goal"
	PrintProjectScope        Kind = "print_project_scope"
	PrintSiteURLs            Kind = "print_site_urls"
	PrintBackendCode         Kind = "print_backend_code"
	PrintImprovedBackendCode Kind = "print_improved_backend_code"
	PrintFixedCode           Kind = "print_fixed_code"
	PrintRestAPIEndpoints    Kind = "print_rest_api_endpoints"
)

// Kinds lists every task kind in pipeline order.
func Kinds() []Kind {
	return []Kind{
		ConvertUserInputToGoal,
		PrintProjectScope,
		PrintSiteURLs,
		PrintBackendCode,
		PrintImprovedBackendCode,
		PrintFixedCode,
		PrintRestAPIEndpoints,
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k.Instruction() != ""
}

// Instruction returns the fixed instruction text for k, or "" for an
// unknown kind.
func (k Kind) Instruction() string {
	switch k {
	case ConvertUserInputToGoal:
		return "Input: a free-form request from a user describing a website or service they want built.\n" +
			"Function: restate the request as one concise sentence describing the goal of the project.\n" +
			"Output: the single sentence as plain text, starting with \"build a\"."
	case PrintProjectScope:
		return "Input: a project description.\n" +
			"Function: decide what the backend for this project needs.\n" +
			"is_crud_required is true when data must be created, read, updated or deleted.\n" +
			"is_user_login_and_logout is true when users must sign in.\n" +
			"is_external_urls_required is true when the backend must fetch data from third party sites.\n" +
			"Output: a JSON object of the form " +
			`{"is_crud_required": bool, "is_user_login_and_logout": bool, "is_external_urls_required": bool}.`
	case PrintSiteURLs:
		return "Input: a project description.\n" +
			"Function: list publicly reachable API endpoints the backend could call to obtain the external data it needs. " +
			"Prefer endpoints that need no API key.\n" +
			`Output: a JSON array of absolute URL strings, for example ["https://api.example.com/v1/items"].`
	case PrintBackendCode:
		return "Input: a project description followed by a code template.\n" +
			"Function: rewrite the template into a complete backend web server that implements the project. " +
			"Keep the template's language, framework and port.\n" +
			"Output: only the full source code of the single file."
	case PrintImprovedBackendCode:
		return "Input: a project description, its scope, any external URLs, and backend source code.\n" +
			"Function: improve the code so it fully covers the scope, uses the external URLs where relevant, " +
			"and handles errors instead of panicking.\n" +
			"Output: only the full improved source code of the single file."
	case PrintFixedCode:
		return "Input: backend source code and the error it produced when built or smoke tested.\n" +
			"Function: fix the code so it builds and every GET route answers with a 2xx status.\n" +
			"Output: only the full corrected source code of the single file."
	case PrintRestAPIEndpoints:
		return "Input: backend source code.\n" +
			"Function: list every REST route the server exposes.\n" +
			"Output: a JSON array of objects of the form " +
			`{"path": "/items/{id}", "method": "GET", "description": "...", "request_body": {...}, "response": {...}}` +
			". request_body and response are optional example payloads."
	default:
		return ""
	}
}

func (k Kind) String() string {
	return string(k)
}

func (k Kind) mustInstruction() string {
	text := k.Instruction()
	if text == "" {
		panic(fmt.Sprintf("task: unknown kind %q", string(k)))
	}
	return text
}
