package logger

// Option 修改 Config
type Option func(*Config)

func WithLevel(level Level) Option {
	return func(c *Config) { c.Level = level }
}

func WithFormat(format Format) Option {
	return func(c *Config) { c.Format = format }
}

// WithConsoleOutput 同时写标准输出
func WithConsoleOutput() Option {
	return func(c *Config) { c.Console = true }
}

// WithFileOutput 追加写入单个文件，不轮转
func WithFileOutput(filename string) Option {
	return func(c *Config) { c.File = filename }
}

// WithRotateOutput 写入轮转文件；Filename 为空时沿用 WithFileOutput 的路径，
// 此时不再额外打开普通文件
func WithRotateOutput(rc RotateConfig) Option {
	return func(c *Config) { c.Rotate = &rc }
}

// WithSampling 开启采样，零值字段取默认
func WithSampling(initial, thereafter int) Option {
	return func(c *Config) {
		c.Sampling = &SamplingConfig{Initial: initial, Thereafter: thereafter}
	}
}

func WithCaller(enable bool) Option {
	return func(c *Config) { c.EnableCaller = enable }
}

func WithStacktrace(enable bool) Option {
	return func(c *Config) { c.EnableStacktrace = enable }
}

func WithHook(hook Hook) Option {
	return func(c *Config) { c.Hooks = append(c.Hooks, hook) }
}
