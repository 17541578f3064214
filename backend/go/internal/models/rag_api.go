package models

// IndexPDFResponse 是 POST /index_pdf 的响应体。
// 成功时只填充 Message 与 Chunks；失败时填充 Error 与 Kind。
type IndexPDFResponse struct {
	Message string `json:"message,omitempty"`
	Chunks  int    `json:"chunks,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
	File    string `json:"file,omitempty"`
}

// QueryRequest 是 POST /get_result 的请求体。
type QueryRequest struct {
	Query string `json:"query"`
}

// SourceDocument 表示支撑答案的一个检索分块。
type SourceDocument struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryResponse 是 POST /get_result 的响应体。
type QueryResponse struct {
	Answer  string           `json:"answer"`
	Sources []SourceDocument `json:"sources,omitempty"`
}

// ErrorResponse 是查询接口失败时的响应体。
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
