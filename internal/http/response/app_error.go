package response

// AppError 接口错误：业务码 + 消息键，Err 只进日志不回给调用方
type AppError struct {
	Code int
	Key  string
	Err  error
}

// NewAppError 按消息键构造
func NewAppError(code int, key string, err error) *AppError {
	return &AppError{Code: code, Key: key, Err: err}
}

// Message 对外消息
func (e *AppError) Message() string {
	return Message(e.Key)
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Key
	}
	return e.Key + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }
