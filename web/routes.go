package web

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.health)

	s.router.Get("/users", s.listUsers)
	s.router.Get("/user/{id}", s.getUser)

	s.router.Get("/duplicates", s.listDuplicates)
	s.router.Get("/duplicate/{id}", s.getDuplicate)
}
