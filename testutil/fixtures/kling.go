// =============================================================================
// 📦 测试数据工厂 - Kling 接口响应
// =============================================================================
// 提供与线上格式一致的响应体，用于 httptest 服务端
// =============================================================================
package fixtures

import "fmt"

// =============================================================================
// 🎯 提交响应
// =============================================================================

// Submitted 返回任务创建成功的响应
func Submitted(taskID string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","request_id":"req-%s","data":{"task_id":%q,"task_status":"submitted","created_at":1722769557708,"updated_at":1722769557708}}`, taskID, taskID)
}

// Rejected 返回业务错误响应
func Rejected(code int, message string) string {
	return fmt.Sprintf(`{"code":%d,"message":%q,"request_id":"req-rejected"}`, code, message)
}

// =============================================================================
// 🔎 查询响应
// =============================================================================

// Processing 返回处理中的查询响应
func Processing(taskID string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","data":{"task_id":%q,"task_status":"processing","task_status_msg":""}}`, taskID)
}

// ImageSucceeded 返回图片任务成功的查询响应
func ImageSucceeded(taskID, url string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","data":{"task_id":%q,"task_status":"succeed","task_result":{"images":[{"index":0,"url":%q}]}}}`, taskID, url)
}

// VideoSucceeded 返回视频任务成功的查询响应
func VideoSucceeded(taskID, url string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","data":{"task_id":%q,"task_status":"succeed","task_result":{"videos":[{"id":"v-%s","url":%q,"duration":"5"}]}}}`, taskID, taskID, url)
}

// TaskFailed 返回任务失败的查询响应
func TaskFailed(taskID, reason string) string {
	return fmt.Sprintf(`{"code":0,"message":"SUCCEED","data":{"task_id":%q,"task_status":"failed","task_status_msg":%q}}`, taskID, reason)
}
