/*
包 server 为命令行运行期间暴露 Prometheus /metrics 端点.

Server 非阻塞启动，在后台 goroutine 中服务；Shutdown 在超时内排空连接.
监听地址为空时不启动任何监听，调用方无需判断.
*/
package server
