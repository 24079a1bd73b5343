// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 业务错误分类。UserInput 一族原样返回给调用方；生成失败统一收敛为
// ErrGenerationFailed，底层原因只进日志。
var (
	// ErrNoProductSelected 表示用户还没有选择本轮聊天针对的商品。
	ErrNoProductSelected = errors.New("请先选择一个商品再开始咨询")
	// ErrEmptyMessage 表示聊天消息为空。
	ErrEmptyMessage = errors.New("消息内容不能为空")
	// ErrInvalidOrderOrProduct 表示订单号不存在或商品下标越界。
	ErrInvalidOrderOrProduct = errors.New("无效的订单或商品")
	// ErrGenerationFailed 表示本轮回复生成失败，用户可稍后重试。
	ErrGenerationFailed = errors.New("对话服务暂时不可用，请稍后再试")
)
