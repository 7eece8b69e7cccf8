// Package tlsutil 提供集中式 HTTP 客户端构造，
// 为生成服务、分析服务与产物下载提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
