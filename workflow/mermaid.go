package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Mermaid renders the compiled graph as a Mermaid flowchart. Conditional
// edges are dashed and labelled with their route label.
func (cg *CompiledGraph) Mermaid() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString("\tSTART((start))\n")
	for i, n := range cg.nodes {
		fmt.Fprintf(&b, "\t%s[%q]\n", mermaidID(i), n.name)
	}
	b.WriteString("\tEND((stop))\n")

	fmt.Fprintf(&b, "\tSTART --> %s\n", mermaidID(cg.entry))
	for i, n := range cg.nodes {
		if n.conditional == nil {
			fmt.Fprintf(&b, "\t%s --> %s\n", mermaidID(i), mermaidID(n.next))
			continue
		}
		for _, label := range n.conditional.labels {
			fmt.Fprintf(&b, "\t%s -.->|%s| %s\n",
				mermaidID(i), label, mermaidID(n.conditional.routes[label]))
		}
	}
	return b.String()
}

// mermaidID 按 arena 下标生成节点 ID，节点名只作为标签
func mermaidID(idx int) string {
	if idx == endIndex {
		return "END"
	}
	return "n" + strconv.Itoa(idx)
}
