package api

import (
	"net/http"

	"github.com/snipforge/snipforge/internal/auth"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/service"
)

// Services bundles the domain services the server dispatches to.
type Services struct {
	Pastes        *service.PasteService
	Projects      *service.ProjectService
	Branches      *service.BranchService
	Files         *service.FileService
	Issues        *service.IssueService
	Milestones    *service.MilestoneService
	Comments      *service.CommentService
	Notifications *service.NotificationService
}

type ServerOptions struct {
	EnableMetrics bool
	EnableTracing bool
}

type Server struct {
	db      database.DB
	authSvc *auth.Service
	svc     Services
	mux     *http.ServeMux
	handler http.Handler
}

func NewServer(db database.DB, authSvc *auth.Service, svc Services) *Server {
	return NewServerWithOptions(db, authSvc, svc, ServerOptions{})
}

func NewServerWithOptions(db database.DB, authSvc *auth.Service, svc Services, opts ServerOptions) *Server {
	s := &Server{
		db:      db,
		authSvc: authSvc,
		svc:     svc,
		mux:     http.NewServeMux(),
	}
	s.routes(opts)

	var handler http.Handler = s.mux
	handler = auth.Middleware(s.authSvc)(handler)
	if opts.EnableTracing {
		handler = requestTracingMiddleware(handler)
	}
	if opts.EnableMetrics {
		handler = requestMetricsMiddleware(getDefaultHTTPMetrics(), handler)
	}
	handler = requestLoggingMiddleware(handler)
	handler = requestBodyLimitMiddleware(handler)
	s.handler = handler
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes(opts ServerOptions) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.EnableMetrics {
		s.mux.Handle("GET /metrics", metricsHandler(nil))
	}

	// Auth
	s.mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/v1/user", s.requireAuth(s.handleGetCurrentUser))

	// Pastes
	s.mux.HandleFunc("POST /api/v1/pastes", s.requireAuth(s.handleCreatePaste))
	s.mux.HandleFunc("GET /api/v1/pastes/{slug}", s.handleGetPaste)

	// Projects
	s.mux.HandleFunc("POST /api/v1/projects", s.requireAuth(s.handleCreateProject))
	s.mux.HandleFunc("GET /api/v1/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("PATCH /api/v1/projects/{id}", s.requireAuth(s.handleUpdateProject))
	s.mux.HandleFunc("DELETE /api/v1/projects/{id}", s.requireAuth(s.handleDeleteProject))
	s.mux.HandleFunc("GET /api/v1/users/{username}/projects", s.handleListUserProjects)

	// Branches
	s.mux.HandleFunc("POST /api/v1/projects/{id}/branches", s.requireAuth(s.handleCreateBranch))
	s.mux.HandleFunc("GET /api/v1/projects/{id}/branches", s.handleListBranches)
	s.mux.HandleFunc("GET /api/v1/projects/{id}/branch", s.handleResolveBranch)
	s.mux.HandleFunc("GET /api/v1/projects/{id}/branches/{branchID}", s.handleGetBranch)
	s.mux.HandleFunc("GET /api/v1/projects/{id}/branches/{branchID}/divergence", s.handleBranchDivergence)

	// Files
	s.mux.HandleFunc("POST /api/v1/projects/{id}/branches/{branchID}/files", s.requireAuth(s.handleAddFile))
	s.mux.HandleFunc("GET /api/v1/projects/{id}/branches/{branchID}/files", s.handleListFiles)
	s.mux.HandleFunc("GET /api/v1/projects/{id}/activity", s.handleRecentActivity)

	// Issues
	s.mux.HandleFunc("POST /api/v1/projects/{id}/issues", s.requireAuth(s.handleCreateIssue))
	s.mux.HandleFunc("GET /api/v1/projects/{id}/issues", s.handleListIssues)
	s.mux.HandleFunc("GET /api/v1/projects/{id}/issues/{number}", s.handleGetIssue)
	s.mux.HandleFunc("PATCH /api/v1/projects/{id}/issues/{number}", s.requireAuth(s.handleEditIssue))
	s.mux.HandleFunc("PUT /api/v1/projects/{id}/issues/{number}/status", s.requireAuth(s.handleSetIssueStatus))
	s.mux.HandleFunc("DELETE /api/v1/projects/{id}/issues/{number}", s.requireAuth(s.handleDeleteIssue))

	// Milestones
	s.mux.HandleFunc("POST /api/v1/projects/{id}/milestones", s.requireAuth(s.handleCreateMilestone))
	s.mux.HandleFunc("GET /api/v1/projects/{id}/milestones", s.handleListMilestones)
	s.mux.HandleFunc("GET /api/v1/projects/{id}/milestones/{milestoneID}", s.handleGetMilestone)
	s.mux.HandleFunc("GET /api/v1/projects/{id}/milestones/{milestoneID}/progress", s.handleMilestoneProgress)
	s.mux.HandleFunc("PUT /api/v1/projects/{id}/milestones/{milestoneID}/completed", s.requireAuth(s.handleSetMilestoneCompleted))

	// Issue comments
	s.mux.HandleFunc("POST /api/v1/projects/{id}/issues/{number}/comments", s.requireAuth(s.handleAddComment))
	s.mux.HandleFunc("GET /api/v1/projects/{id}/issues/{number}/comments", s.handleListComments)
	s.mux.HandleFunc("GET /api/v1/projects/{id}/issues/{number}/comments/{commentID}/replies", s.handleListReplies)
	s.mux.HandleFunc("DELETE /api/v1/projects/{id}/issues/{number}/comments/{commentID}", s.requireAuth(s.handleDeleteComment))

	// Notifications
	s.mux.HandleFunc("GET /api/v1/notifications", s.requireAuth(s.handleListNotifications))
	s.mux.HandleFunc("POST /api/v1/notifications/{id}/read", s.requireAuth(s.handleMarkNotificationRead))
}

func (s *Server) requireAuth(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.GetClaims(r.Context()) == nil {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		fn(w, r)
	}
}

// actorID is zero for anonymous requests; visibility checks treat zero as
// never-the-owner.
func actorID(r *http.Request) int64 {
	if claims := auth.GetClaims(r.Context()); claims != nil {
		return claims.UserID
	}
	return 0
}
