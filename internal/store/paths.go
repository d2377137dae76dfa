package store

// Path layout used by this application inside the shared store.

func RoomPath(roomID string) string { return "rooms/" + roomID }

func UsersPath(roomID string) string { return RoomPath(roomID) + "/users" }

func UserPath(roomID, userID string) string { return UsersPath(roomID) + "/" + userID }

func QueuePath(roomID string) string { return RoomPath(roomID) + "/queue" }

func QueueEntryPath(roomID, key string) string { return QueuePath(roomID) + "/" + key }

func SignalsPath(roomID string) string { return RoomPath(roomID) + "/webrtc_signals" }

func SignalPath(roomID, key string) string { return SignalsPath(roomID) + "/" + key }

func ScoresPath(roomID string) string { return RoomPath(roomID) + "/scores" }
