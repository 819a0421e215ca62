package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *Server) listMembers(c *fiber.Ctx) error {
	members, err := s.membership.Members(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(MemberListResponse{Members: members, Total: len(members)})
}

func (s *Server) getMember(c *fiber.Ctx) error {
	id := c.Params("id")
	members, err := s.membership.Members(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	for _, m := range members {
		if m.ID == id {
			return c.JSON(m)
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Error:   "not_found",
		Message: "member not found: " + id,
	})
}

func (s *Server) clusterSize(c *fiber.Ctx) error {
	size, err := s.membership.Size(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(SizeResponse{Size: size})
}

func (s *Server) executorStats(c *fiber.Ctx) error {
	if s.stats == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "no executor attached",
		})
	}
	return c.JSON(StatsResponse{
		Latency: s.stats.LatencyStats(),
		Running: s.stats.Running(),
	})
}
