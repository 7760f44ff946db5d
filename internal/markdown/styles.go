package markdown

import (
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
)

const (
	classParagraph     = "mb-4 leading-7 dark:text-gray-300"
	classOrderedList   = "list-decimal list-outside ml-6 mb-4 space-y-2"
	classUnorderedList = "list-disc list-outside ml-6 mb-4 space-y-2"
	classListItem      = "text-gray-700 dark:text-gray-300 leading-6"
	classStrong        = "font-bold text-gray-900 dark:text-gray-100"
	classEmphasis      = "italic text-gray-800 dark:text-gray-200"
	classLink          = "text-blue-600 dark:text-blue-400 hover:text-blue-800 dark:hover:text-blue-300 underline decoration-blue-600/30 hover:decoration-blue-600 underline-offset-2 transition-colors duration-200"
	classBlockquote    = "border-l-4 border-blue-500 bg-blue-50 dark:bg-blue-950/30 pl-6 pr-4 py-4 my-6 italic text-gray-700 dark:text-gray-300 rounded-r-lg"
	classRule          = "my-8 border-0 h-px bg-gradient-to-r from-transparent via-gray-300 dark:via-gray-600 to-transparent"
	classTable         = "min-w-full border-collapse border border-gray-300 dark:border-gray-600 rounded-lg overflow-hidden shadow-sm"
	classTableHeader   = "bg-gray-50 dark:bg-gray-800"
	classTableRow      = "hover:bg-gray-50 dark:hover:bg-gray-800/50 transition-colors duration-150"
	classHeaderCell    = "px-6 py-3 text-left text-xs font-medium text-gray-500 dark:text-gray-400 uppercase tracking-wider border-b border-gray-200 dark:border-gray-600"
	classCell          = "px-6 py-4 whitespace-nowrap text-sm text-gray-700 dark:text-gray-300 border-b border-gray-200 dark:border-gray-600"
	classCheckBox      = "mr-2 rounded border-gray-300 text-blue-600 focus:ring-blue-500 dark:border-gray-600 dark:bg-gray-700"
)

// headingClasses is indexed by heading level.
var headingClasses = [...]string{
	1: "text-4xl font-bold mt-8 mb-4 text-gray-900 dark:text-gray-100 border-b border-gray-200 dark:border-gray-700 pb-2",
	2: "text-3xl font-bold mt-8 mb-4 text-gray-900 dark:text-gray-100 border-b border-gray-200 dark:border-gray-700 pb-2",
	3: "text-2xl font-semibold mt-6 mb-3 text-gray-900 dark:text-gray-100",
	4: "text-xl font-semibold mt-6 mb-3 text-gray-900 dark:text-gray-100",
	5: "text-lg font-semibold mt-4 mb-2 text-gray-900 dark:text-gray-100",
	6: "text-base font-semibold mt-4 mb-2 text-gray-800 dark:text-gray-200",
}

// styler decorates one node in place. It never touches children.
type styler func(n ast.Node)

var styles = map[ast.NodeKind]styler{
	ast.KindParagraph:      withClass(classParagraph),
	ast.KindList:           styleList,
	ast.KindListItem:       withClass(classListItem),
	ast.KindEmphasis:       styleEmphasis,
	ast.KindLink:           styleLink,
	ast.KindAutoLink:       styleLink,
	ast.KindHeading:        styleHeading,
	ast.KindBlockquote:     withClass(classBlockquote),
	ast.KindThematicBreak:  withClass(classRule),
	east.KindTable:         withClass(classTable),
	east.KindTableHeader:   withClass(classTableHeader),
	east.KindTableRow:      withClass(classTableRow),
	east.KindTableCell:     styleCell,
	east.KindTaskCheckBox:  withClass(classCheckBox),
	east.KindStrikethrough: withClass("line-through"),
}

func withClass(class string) styler {
	return func(n ast.Node) {
		n.SetAttributeString("class", []byte(class))
	}
}

func styleList(n ast.Node) {
	if n.(*ast.List).IsOrdered() {
		n.SetAttributeString("class", []byte(classOrderedList))
		return
	}
	n.SetAttributeString("class", []byte(classUnorderedList))
}

func styleEmphasis(n ast.Node) {
	if n.(*ast.Emphasis).Level == 2 {
		n.SetAttributeString("class", []byte(classStrong))
		return
	}
	n.SetAttributeString("class", []byte(classEmphasis))
}

// rel is set by the sanitizer policy.
func styleLink(n ast.Node) {
	n.SetAttributeString("class", []byte(classLink))
	n.SetAttributeString("target", []byte("_blank"))
}

func styleHeading(n ast.Node) {
	level := n.(*ast.Heading).Level
	if level < 1 || level >= len(headingClasses) {
		return
	}
	n.SetAttributeString("class", []byte(headingClasses[level]))
}

func styleCell(n ast.Node) {
	if _, ok := n.Parent().(*east.TableHeader); ok {
		n.SetAttributeString("class", []byte(classHeaderCell))
		return
	}
	n.SetAttributeString("class", []byte(classCell))
}
