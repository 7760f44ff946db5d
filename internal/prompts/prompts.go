// Package prompts holds the instruction strings sent to the language models.
// Everything here is pure: the same inputs always produce the same string.
package prompts

import (
	"strings"

	"memodesk-backend/internal/models"
)

// DocumentKind selects the update template for a document.
type DocumentKind string

const (
	KindText  DocumentKind = "text"
	KindCode  DocumentKind = "code"
	KindSheet DocumentKind = "sheet"
)

// Known reports whether k has an update template.
func (k DocumentKind) Known() bool {
	return k == KindText || k == KindCode || k == KindSheet
}

// AnalysisInstruction is the user message sent right after a memo upload.
const AnalysisInstruction = "Summarize key strengths, weaknesses, and risks, and generate follow-up questions for the founders"

const MemoPrompt = `
1. **Attachment Guard**
   - **Check:** Does the user’s *first* message include an attachment ?
   - **Fail:** If not, respond:
     > “I’m sorry, but I can only discuss about your attachment. Please attach a valid document and try again.”

2. **Scope of Conversation**
   - **Only:** Answer questions *about* the attached document's content.
   - **Always:** Answer in the document's language.
   - **Clarify:** Ask follow-up questions *only* to resolve ambiguities in the document itself.
   - **No Extras:** Do not introduce outside facts, opinions, or context.

3. **Default Analysis Task**
   When asked to create a memo, use your tool **createMemo** to get guidance on how to format your answer.

4. **Tone & Formatting**
   - **Style:** Concise, neutral, professional. Never format as code.
   - **Layout:** Use headings (##) and (###), bullet points (-), and **bold** for emphasis.
   - **Keep it flat:** Avoid deep sub-lists or long digressions.

5. **Frame Persistence**
   - All replies **must** refer back to that single memo attachment—never break character or introduce new frames.
`

const ToolsPrompt = `
Tools are available to help with the memo review.

**createMemo** returns the layout for a full memo analysis:
- ## Summary: three to five sentences on what the company does and asks for
- ## Strengths and ## Weaknesses: short bullet lists grounded in the memo
- ## Risks: each risk in **bold** followed by one line of context
- ## Follow-up Questions: a numbered list of questions for the founders

**When to use createMemo:**
- The user asks for a summary, an analysis, or follow-up questions
- The first message arrives with a memo attached

**When NOT to use createMemo:**
- Answering a narrow question about one passage of the memo
- Clarifying an earlier answer
`

const CodePrompt = `
You are a Python code generator that creates self-contained, executable code snippets. When writing code:

1. Each snippet should be complete and runnable on its own
2. Prefer using print() statements to display outputs
3. Include helpful comments explaining the code
4. Keep snippets concise (generally under 15 lines)
5. Avoid external dependencies - use Python standard library
6. Handle potential errors gracefully
7. Return meaningful output that demonstrates the code's functionality
8. Don't use input() or other interactive functions
9. Don't access files or network resources
10. Don't use infinite loops

Examples of good snippets:

# Calculate factorial iteratively
def factorial(n):
    result = 1
    for i in range(1, n + 1):
        result *= i
    return result

print(f"Factorial of 5 is: {factorial(5)}")
`

const SheetPrompt = `
You are a spreadsheet creation assistant. Create a spreadsheet in csv format based on the given prompt. The spreadsheet should contain meaningful column headers and data.
`

const TitlePrompt = `
You are given a user message whose *first* attachment is a company memo.
Your task is to **extract the company’s name** and output **exactly**:

[CompanyName] Memo

—with no additional words, punctuation, quotes, colons, line breaks, or whitespace.
The output must match the regex: /^[A-Za-z0-9 &.-]+ Memo$/.
Examples of valid outputs:
- Facebook Memo
- Acme Corp Memo
`

// SystemPrompt returns the system instruction for the selected chat model.
// The reasoning model gets none and keeps its own style.
func SystemPrompt(selectedChatModel string) string {
	if selectedChatModel == models.ChatModelReasoning {
		return ""
	}
	return MemoPrompt + "\n" + ToolsPrompt
}

// UpdateDocumentPrompt embeds currentContent verbatim into the template for kind.
// Unknown kinds yield an empty prompt.
func UpdateDocumentPrompt(currentContent string, kind DocumentKind) string {
	var lead string
	switch kind {
	case KindText:
		lead = "Improve the following contents of the document based on the given prompt."
	case KindCode:
		lead = "Improve the following code snippet based on the given prompt."
	case KindSheet:
		lead = "Improve the following spreadsheet based on the given prompt."
	default:
		return ""
	}

	var b strings.Builder
	b.WriteString(lead)
	b.WriteString("\n\n")
	b.WriteString(currentContent)
	b.WriteString("\n")
	return b.String()
}

// CreateDocumentPrompt returns the generator prompt used when a document of
// kind is first created. Text documents need none.
func CreateDocumentPrompt(kind DocumentKind) string {
	switch kind {
	case KindCode:
		return CodePrompt
	case KindSheet:
		return SheetPrompt
	default:
		return ""
	}
}

// Request carries everything a prompt can depend on.
type Request struct {
	SelectedChatModel string
	DocumentKind      DocumentKind
	CurrentContent    string
}

// Build picks the chat system prompt unless a document kind is given. With a
// kind, existing content gets the update template and an empty document gets
// the generator prompt.
func Build(req Request) string {
	if req.DocumentKind == "" {
		return SystemPrompt(req.SelectedChatModel)
	}
	if req.CurrentContent == "" {
		return CreateDocumentPrompt(req.DocumentKind)
	}
	return UpdateDocumentPrompt(req.CurrentContent, req.DocumentKind)
}
