package task

import (
	"fmt"

	"github.com/dyluth/warren/internal/llm"
)

const printerDirective = "INSTRUCTION: You are a function printer. You ONLY print the results of functions. " +
	"Nothing else. No commentary."

// Extend wraps input into a system message that carries the instruction for
// kind and constrains the model to print only the function's output.
// It panics on an unknown kind.
func Extend(kind Kind, input string) llm.Message {
	content := fmt.Sprintf("FUNCTION: %s\n%s\nHere is the input to the function: %s\nPrint out what the function will return.",
		kind.mustInstruction(), printerDirective, input)
	return llm.System(content)
}
