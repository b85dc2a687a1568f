package types

// Server -> Client events, as {"type": name, "data": payload}
// yourRole (private):
//   role: "mafia" | "citizen" | "police" | "doctor"
//   partners: string[]        // mafia only
//
// PHASE_UPDATED, ROOM:NIGHT_START (night only):
//   gameId: string
//   day: number
//   phase: "morning" | "day" | "night"
//   stage: "first_vote" | "execution"   // day only
//   durationMs: number
//   accused: string                     // execution only
//
// voteUpdated:
//   voterId: string
//   targetId: string
//   execute: boolean           // execution ballots only
//   cast: number
//   needed: number
//
// VOTE:SURVIVAL | VOTE:FIRST:TIE:
//   targetId: string           // winner only
//   voteCount: number
//   candidates: string[]       // tie only
//   tally: { [playerId]: number }
//
// VOTE:SECOND:DEAD | VOTE:SECOND:SPARED | VOTE:SECOND:TIE:
//   targetId: string
//   executed: boolean
//   tie: boolean
//   executeCount: number
//   spareCount: number
//   executeVoterIds: string[]
//   spareVoterIds: string[]
//
// ACTION:MAFIA_TARGET | ACTION:POLICE_TARGET | ACTION:DOCTOR_TARGET:
//   role: string
//   selected: true             // the target is never sent
//
// ROOM:NIGHT_RESULT:
//   night: number
//   outcome: "killed" | "protected" | "quiet"
//   killedUserId: string | null
//   details: string
//
// POLICE:RESULT (private):
//   night: number
//   targetUserId: string
//   role: "mafia" | "citizen"
//
// message | CHAT:MAFIA | CHAT:DEAD:
//   senderId: string
//   channel: string
//   message: string
//   sentAt: string
//
// gameEnd:
//   roomId: string
//   gameId: string
//   winner: "mafia" | "citizens"
//   days: number
//   players: { id: string, role: string, alive: boolean }[]
