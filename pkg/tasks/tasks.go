// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// ReindexTask represents an asynchronous re-ingestion request for a document.
// 消费者会从对象存储取回原始文件并重新走一遍提取/分块/索引流程。
type ReindexTask struct {
	DocID    string `json:"doc_id"`
	FileName string `json:"file_name"`
}
