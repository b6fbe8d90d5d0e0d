package handlers

import (
	"net/http"
)

// GraphDescriber 可导出结构的已编译图
type GraphDescriber interface {
	Name() string
	Nodes() []string
	Mermaid() string
}

// GraphInfo 图结构描述
type GraphInfo struct {
	Name    string   `json:"name"`
	Nodes   []string `json:"nodes"`
	Mermaid string   `json:"mermaid"`
}

// GraphHandler 工作流结构端点
type GraphHandler struct {
	graph GraphDescriber
}

// NewGraphHandler 创建 GraphHandler
func NewGraphHandler(graph GraphDescriber) *GraphHandler {
	return &GraphHandler{graph: graph}
}

// HandleGraph 返回 Mermaid 流程图；Accept 为 application/json 时返回 GraphInfo
// @Summary 工作流结构
// @Tags 工作流
// @Produce plain
// @Produce json
// @Success 200 {string} string "Mermaid 文本"
// @Router /api/v1/workflow/graph [get]
func (h *GraphHandler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "application/json" {
		WriteSuccess(w, GraphInfo{
			Name:    h.graph.Name(),
			Nodes:   h.graph.Nodes(),
			Mermaid: h.graph.Mermaid(),
		})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.graph.Mermaid()))
}
