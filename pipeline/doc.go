// Copyright (c) PostFlow Authors.
// Licensed under the MIT License.

/*
包 pipeline 组装参考工作流 "post-agent"：从 HackerNews 采集热门帖子，
下载为 Markdown，用 LLM 生成小红书风格文案，再渲染为封面图片。

	START → collector_agent → download_agent
	download_agent ─成功→ summarize_agent ─→ transform_agent → END
	download_agent ─失败→ END

# 状态键

task_id、target_origin 由调用方提供；collected_url、collected_title、
post_id 由 collector_agent 写入；output_directory 由 download_agent 写入；
summary_content 由 summarize_agent 写入；transform_agent 写入 status。
全部键使用 REPLACE 策略。

# 失败分类

节点通过 workflow.Fail 标注失败类别：缺少输入为 invalid_input，
HTTP/脚本/LLM 失败为 external，文件系统失败为 io，没有可处理的帖子为
not_found。只有 download_agent 配置了条件路由，其余节点失败会中止运行。
*/
package pipeline
