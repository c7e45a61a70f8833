package rpc

func (s *Server) registerRoutes() {
	s.router.GET("/ping", s.handlePing)
	s.router.POST("/shutdown", s.handleShutdown)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/repos", s.handleRepoList)
		v1.POST("/repos", s.handleRepoAdd)

		v1.GET("/workspaces", s.handleWorkspaceList)
		v1.POST("/workspaces", s.handleWorkspaceCreate)
		v1.GET("/workspaces/:workspace", s.handleWorkspaceGet)
		v1.POST("/workspaces/:workspace/archive", s.handleWorkspaceArchive)
		v1.GET("/workspaces/:workspace/files", s.handleWorkspaceFiles)
		v1.GET("/workspaces/:workspace/changes", s.handleWorkspaceChanges)
		v1.GET("/workspaces/:workspace/file", s.handleWorkspaceFileContent)
		v1.GET("/workspaces/:workspace/diff", s.handleWorkspaceFileDiff)

		v1.GET("/workspaces/:workspace/session", s.handleSessionGet)
		v1.POST("/workspaces/:workspace/session", s.handleSessionCreate)
		v1.POST("/workspaces/:workspace/session/resume", s.handleSessionSetResume)
		v1.GET("/workspaces/:workspace/chat", s.handleChatGet)
		v1.POST("/workspaces/:workspace/chat", s.handleChatAppend)
		v1.DELETE("/workspaces/:workspace/chat", s.handleChatClear)

		v1.GET("/agents", s.handleListActiveAgents)
		v1.GET("/agents/run", s.handleRunAgent)
		v1.GET("/agents/:session/attach", s.handleAttachAgent)
		v1.POST("/agents/:session/stop", s.handleStopAgent)
	}
}
