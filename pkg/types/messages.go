package types

// Client -> Server (GET /ws?room={roomId}&user={playerId})
// VOTE:FIRST:
//   targetId: string
//
// VOTE:SECOND:
//   execute: boolean
//
// ACTION:MAFIA_TARGET | ACTION:POLICE_TARGET | ACTION:DOCTOR_TARGET:
//   targetId: string
//
// ACTION:
//   role: "mafia" | "police" | "doctor"
//   targetId: string
//
// REQUEST:POLICE_RESULT: {}
//
// CHAT:
//   channel: "room" | "mafia" | "dead"   // empty means room
//   message: string

// Server -> Client, replies to the sender only
// ACK:
//   request: string            // the client message type
//
// REFUSED:
//   request: string
//   reason: "wrong_phase" | "self_vote" | "duplicate_vote" | "dead_voter" | "dead_target"
//         | "dead_actor" | "not_your_role" | "already_investigated" | "not_police"
//         | "no_inspection" | "dead_speaker" | "alive_speaker"
//
// error:
//   message: string
