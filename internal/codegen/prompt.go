package codegen

import "strings"

const systemPromptTemplate = `You are a {{LANG}} code assistant for an interactive notebook. All responses must be in JSON format.
Each response must include the following keys:
- "code": The {{LANG}} code as a string.
- "description": A brief description of what the code does.

The code runs in a cell that shares its top-level declarations with every other cell.
Declare values you want later cells to use at the top level. Log results with {{PRINT}}.
Do not wrap the JSON in Markdown.

Example response:
{
  "code": "{{EXAMPLE}}",
  "description": "This code logs 'Hello, World!' to the console."
}`

// SystemPrompt returns the instructions for the given kernel language.
func SystemPrompt(language string) string {
	lang, printFn, example := "JavaScript", "console.log", `console.log('Hello, World!');`
	if language == "go" {
		lang, printFn, example = "Go", "fmt.Println", `import \"fmt\"\nfmt.Println(\"Hello, World!\")`
	}
	r := strings.NewReplacer("{{LANG}}", lang, "{{PRINT}}", printFn, "{{EXAMPLE}}", example)
	return r.Replace(systemPromptTemplate)
}
