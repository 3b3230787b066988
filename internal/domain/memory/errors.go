package memory

import "errors"

var (
	// ErrModelUnavailable LLM 调用失败（网络、超时、供应商错误）
	ErrModelUnavailable = errors.New("language model unavailable")

	// ErrStoreWrite 摘要写入失败
	ErrStoreWrite = errors.New("summary store write failed")

	// ErrStoreRead 摘要读取失败
	ErrStoreRead = errors.New("summary store read failed")
)
