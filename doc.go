// Package auth provides sign-in, sign-up and token rotation for the three
// account kinds of the platform: students, citizens and administrators.
//
// Accounts:
//   - Students and citizens sign up with a phone number and sign in with the
//     id they were given. A phone number belongs to at most one of them, the
//     phone_numbers registry enforces this inside the sign-up transaction.
//   - Administrators are seeded ahead of time and sign in through a federated
//     identity provider. Unknown emails are rejected, no account is created.
//
// Tokens:
//   - Every successful flow returns a TokenPair. Access and refresh tokens are
//     RS256 JWTs signed with separate keys and carry the account role.
//   - Only a bcrypt hash of the latest refresh token is stored. Refresh
//     replaces it, so a refresh token verifies once.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther to describe
//     sign-in, sign-up, federated and refresh events. Sinks run best-effort
//     (errors are logged) so you can forward to metrics or a log without
//     blocking authentication.
package auth
