package pipeline

import "github.com/BaSui01/postflow/workflow"

// GraphName 编译后图的名称
const GraphName = "post-agent"

// 节点名
const (
	NodeCollector = "collector_agent"
	NodeDownload  = "download_agent"
	NodeSummarize = "summarize_agent"
	NodeTransform = "transform_agent"
)

// 状态键
const (
	KeyTaskID          = "task_id"
	KeyTargetOrigin    = "target_origin"
	KeyStatus          = "status"
	KeyOutputDirectory = "output_directory"
	KeyCollectedURL    = "collected_url"
	KeyCollectedTitle  = "collected_title"
	KeyPostID          = "post_id"
	KeySummaryContent  = "summary_content"
)

// StatusTransformed transform_agent 完成后写入 status
const StatusTransformed = "transformed"

var allKeys = []string{
	KeyTaskID, KeyTargetOrigin, KeyStatus, KeyOutputDirectory,
	KeyCollectedURL, KeyCollectedTitle, KeyPostID, KeySummaryContent,
}

// InitialState 构造一次运行的初始状态
func InitialState(taskID int64, targetOrigin string) map[string]workflow.Value {
	initial := map[string]workflow.Value{KeyTaskID: workflow.Int(taskID)}
	if targetOrigin != "" {
		initial[KeyTargetOrigin] = workflow.String(targetOrigin)
	}
	return initial
}

func stringOf(view workflow.StateView, key string) (string, bool) {
	s, ok := workflow.ViewString(view, key)
	return s, ok && s != ""
}

func intOf(view workflow.StateView, key string) (int64, bool) {
	return workflow.ViewInt(view, key)
}
