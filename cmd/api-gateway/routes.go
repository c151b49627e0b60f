package main

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-resource-core/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-resource-core/internal/middleware"
	"github.com/noah-isme/sma-resource-core/internal/models"
)

type routeHandlers struct {
	bookings   *handler.BookingHandler
	rooms      *handler.RoomHandler
	attendance *handler.AttendanceHandler
	stats      *handler.StatsHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	staff := internalmiddleware.RequireRoles(models.RoleTeacher, models.RoleAdministrator)
	studentSelf := internalmiddleware.RBAC(internalmiddleware.Self, string(models.RoleTeacher), string(models.RoleAdministrator))

	bookings := api.Group("/bookings")
	bookings.GET("", h.bookings.List)
	bookings.POST("", staff, h.bookings.Create)
	bookings.PUT("/:id", staff, h.bookings.Update)
	bookings.POST("/:id/cancel", staff, h.bookings.Cancel)

	rooms := api.Group("/rooms")
	rooms.GET("/available", h.rooms.Available)
	rooms.GET("/:id/availability", h.rooms.Availability)
	rooms.GET("/:id/calendar", h.rooms.Calendar)
	rooms.GET("/:id/usage", staff, h.rooms.Usage)

	classes := api.Group("/classes/:classId/attendance")
	classes.GET("", h.attendance.ClassAttendance)
	classes.POST("", staff, h.attendance.Mark)
	classes.POST("/present", staff, h.attendance.MarkAllPresent)
	classes.GET("/dates", h.attendance.Dates)
	classes.GET("/export", staff, h.attendance.Export)
	classes.GET("/stats", staff, h.stats.ClassStats)
	classes.GET("/percentage", staff, h.stats.ClassPercentage)

	api.PATCH("/attendance/:id", staff, h.attendance.Update)

	students := api.Group("/students/:id/attendance", studentSelf)
	students.GET("", h.attendance.StudentHistory)
	students.GET("/stats", h.stats.StudentStats)
	students.GET("/percentage", h.stats.StudentPercentage)
}
