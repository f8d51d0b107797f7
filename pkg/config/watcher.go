package config

import "github.com/fsnotify/fsnotify"

// startWatch 开始监控配置文件，调用方持有写锁
func (c *Config) startWatch() {
	if c.watching {
		return
	}
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		c.mu.RLock()
		watching := c.watching
		onChange := c.onChange
		c.mu.RUnlock()

		if watching && onChange != nil {
			onChange(e)
		}
	})
	c.viper.WatchConfig()
	c.watching = true
}

// StartWatch 开始监控配置文件变更，重复调用无副作用
func (c *Config) StartWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startWatch()
}

// StopWatch 停止触发变更回调
// viper 不提供关闭底层 fsnotify watcher 的方法，这里只屏蔽回调
func (c *Config) StopWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching = false
}

// Close 停止监控
func (c *Config) Close() {
	c.StopWatch()
}
