package broker

import "strconv"

// Using NATS is simpler than RabbitMQ for the projects requirements.
var (
	StreamName      = "MESSAGES"
	SubjectAllRooms = StreamName + ".room.*"
)

// SubjectRoom is the subject a room's messages are published on.
func SubjectRoom(roomID int64) string {
	return StreamName + ".room." + strconv.FormatInt(roomID, 10)
}
