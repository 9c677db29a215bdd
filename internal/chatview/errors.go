package chatview

import "errors"

var (
	ErrNotMember   = errors.New("not a member of this room")
	ErrNoRoom      = errors.New("no room is open")
	ErrCoolingDown = errors.New("send cooldown in progress")
	ErrSendBusy    = errors.New("a send is already in flight")
)
