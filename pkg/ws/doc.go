// Package ws 实现房间制的实时在线状态与消息中继。
//
// 组件自底向上：
//
//   - Registry 跟踪每条连接及其存活标记，Unregister 幂等
//   - RoomTable 维护 房间 -> 连接 -> 用户 映射，推导去重后的在线用户列表
//   - Broadcaster 向房间内连接非阻塞投递帧
//   - Heartbeat 周期性 ping，错过一轮探测的连接被终止并注销
//   - Handler 单连接读循环，解码 JOIN_ROOM / LEAVE_ROOM / CHAT_MESSAGE 并分发
//
// Server 将以上组件组装为 http.Handler：
//
//	relay, err := ws.NewServer(
//	    ws.WithHeartbeatInterval(30*time.Second),
//	    ws.WithCheckOriginWhitelist([]string{"https://chat.example.com"}),
//	    ws.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//	relay.Start()
//	defer relay.Shutdown(context.Background())
//
//	engine.GET("/ws", func(c *roomcast.Context) {
//	    relay.ServeHTTP(c.Writer, c.Request)
//	})
//
// 房间在首个连接加入时隐式创建，最后一个连接离开时删除。
// 成员变更与随后的 ROOM_MEMBERS_UPDATE 推导在同一把锁内完成，
// 同一房间的通知按变更顺序进入各连接的发送队列。
//
// 事件总线 EventBus 异步分发连接、房间、聊天与心跳事件，
// 供监控与 pkg/eventsink 导出使用，处理器不影响中继主路径。
package ws
