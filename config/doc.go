// Package config 提供 MediaFlow 的配置管理功能。
//
// 包含默认配置、YAML 文件加载、.env 文件与环境变量覆盖，
// 以及分析服务 API Key（JSON 文件）的读取。
package config
