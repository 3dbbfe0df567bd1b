package models

// ServerStats are derived counters recomputed from ground truth.
type ServerStats struct {
	Uptime            int64 `json:"uptime"` // ms
	PeakConnections   int   `json:"peakConnections"`
	TotalConnections  int64 `json:"totalConnections"`
	ActualConnections int   `json:"actualConnections"`
	RegisteredUsers   int   `json:"registeredUsers"`
	TeacherMonitors   int   `json:"teacherMonitors"`
}

// TeacherReport is the aggregate cross-room view.
type TeacherReport struct {
	Rooms           []RoomSummary `json:"rooms"`
	TotalRooms      int           `json:"totalRooms"`
	TotalUsers      int           `json:"totalUsers"`
	StudentsInRooms int           `json:"studentsInRooms"`
	NonTeacherUsers int           `json:"nonTeacherUsers"`
	ServerStats     ServerStats   `json:"serverStats"`
}

// StatsUpdate is the payload pushed to teacher monitors on state changes.
type StatsUpdate struct {
	ActiveRooms      int   `json:"activeRooms"`
	OnlineStudents   int   `json:"onlineStudents"`
	TotalConnections int   `json:"totalConnections"`
	NonTeacherUsers  int   `json:"nonTeacherUsers"`
	Timestamp        int64 `json:"timestamp"`
}
