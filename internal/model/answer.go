package model

// Citation 表示答案中的一条引用：被引述的原文与其位置标签。
// 位置标签遵循 "Page X, Paragraph Y" / "Section Z" / "Document" 约定。
type Citation struct {
	Text     string `json:"text"`
	Location string `json:"location"`
}

// DocumentAnswer 表示单个文档对一次查询的回答。
// 查询期瞬态数据，不持久化；Error 非空时表示降级结果。
type DocumentAnswer struct {
	DocID     string     `json:"id"`
	FileName  string     `json:"filename"`
	Response  string     `json:"response"`
	Citations []Citation `json:"citations"`
	Error     string     `json:"error,omitempty"`
}

// Theme 表示跨文档聚类出的一个主题。
type Theme struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	SupportingDocs []string `json:"supporting_docs"`
}

// ThemeAnalysis 是综合阶段对单个主题的分析条目。
type ThemeAnalysis struct {
	ThemeName          string `json:"theme_name"`
	Explanation        string `json:"explanation"`
	SupportingEvidence string `json:"supporting_evidence"`
	RelevanceToQuery   string `json:"relevance_to_query"`
}

// SynthesizedResponse 是最终综合输出。
type SynthesizedResponse struct {
	SynthesizedResponse string          `json:"synthesized_response"`
	ThemesAnalysis      []ThemeAnalysis `json:"themes_analysis"`
	Error               string          `json:"error,omitempty"`
}

// QueryResult 是查询边界返回的完整响应。
type QueryResult struct {
	DocumentResponses   []DocumentAnswer    `json:"document_responses"`
	Themes              []Theme             `json:"themes"`
	SynthesizedResponse SynthesizedResponse `json:"synthesized_response"`
}

// QueryHistoryEntry 是保存到 Redis 的一条查询历史记录。
type QueryHistoryEntry struct {
	Query         string `json:"query"`
	DocumentCount int    `json:"documentCount"`
	ThemeCount    int    `json:"themeCount"`
	Summary       string `json:"summary"`
	Timestamp     int64  `json:"timestamp"`
}
