/*
mediaflow 是生成工作流的命令行入口.

使用方法:

	mediaflow run --prompt "a red fox in snow" --candidates 3 --video
	mediaflow run --source generated --keyword "mountain lakes" --count 5
	mediaflow run --interactive              # 从标准输入读取提示词
	mediaflow token                          # 签发并保存令牌
	mediaflow query image <task-id>          # 单次查询任务状态
	mediaflow wait video <task-id>           # 轮询直到任务结束
	mediaflow classify downloads --mode classify-only
	mediaflow version

全局参数 --config、--env-file、--json、--verbose 适用于所有子命令.
退出码见 exit.go.
*/
package main
