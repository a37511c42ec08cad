package httputil

import (
	"fmt"
	"log"
)

const genericErrorMessage = "Error code not found"

// messages is the localized catalog keyed by "{result}-{domain}-{layer}-{code}".
// Codes without a catalog entry fall back to a generic message so internal
// numbering never leaks to clients.
var messages = map[string]string{
	// user / api
	"success-user-api-1000": "Account created, check your inbox to verify your email",
	"success-user-api-1001": "Login success",
	"success-user-api-1002": "Logout success",
	"success-user-api-1003": "Email verified",
	"success-user-api-1004": "Verification email sent",
	"success-user-api-1005": "Password reset email sent",
	"success-user-api-1006": "Password has been reset",
	"success-user-api-1007": "Profile loaded",
	"success-user-api-1008": "Entitlement unlocked",
	"success-user-api-1009": "Preferences updated",
	"success-user-api-1010": "Password changed",
	"success-user-api-1011": "Review decision recorded",

	"error-user-api-1000": "Missing request parameters",
	"error-user-api-1001": "Signup failed",
	"error-user-api-1002": "Signup failed",
	"error-user-api-1003": "Login failed",
	"error-user-api-1004": "Email address not verified",
	"error-user-api-1005": "Logout failed",
	"error-user-api-1006": "User not found",
	"error-user-api-1007": "Email verification failed",
	"error-user-api-1008": "User not found",
	"error-user-api-1009": "Resend verification failed",
	"error-user-api-1010": "User not found",
	"error-user-api-1011": "Password reset request failed",
	"error-user-api-1012": "User not found",
	"error-user-api-1013": "Password reset failed",
	"error-user-api-1014": "Missing review parameters",
	"error-user-api-1015": "Review target not found",
	"error-user-api-1016": "Unknown review mode",
	"error-user-api-1017": "Review failed",
	"error-user-api-1018": "Forbidden",
	"error-user-api-1019": "Profile lookup failed",
	"error-user-api-1020": "Unknown product",
	"error-user-api-1021": "Not enough candy",
	"error-user-api-1022": "Unlock failed",
	"error-user-api-1023": "Preference update failed",
	"error-user-api-1024": "Old password is wrong",
	"error-user-api-1025": "Forbidden",
	"error-user-api-1026": "Password change failed",
	"error-user-api-1027": "Email already registered",
	"error-user-api-1028": "Invalid signup parameters",
	"error-user-api-1029": "Too many requests, try again later",

	// user / controller
	"error-user-controller-1008": "Missing credential material",
	"error-user-controller-1009": "Email and password are required",
	"error-user-controller-1010": "Account not found",
	"error-user-controller-1011": "Session token does not match this account",
	"error-user-controller-1012": "Wrong email or password",
	"error-user-controller-1013": "Login failed",
	"error-user-controller-1014": "Invalid session token",
	"error-user-controller-1015": "Login failed",
	"error-user-controller-1017": "Login failed",
	"error-user-controller-1018": "Session token could not be issued",

	// auth / middleware
	"error-auth-middleware-1000": "Missing credentials",
	"error-auth-middleware-1001": "Invalid session",
	"error-auth-middleware-1002": "Email address not verified",
	"error-auth-middleware-1003": "Account flagged by moderation",
	"error-auth-middleware-1004": "Forbidden",
	"error-auth-middleware-1005": "Target user not found",
	"error-auth-middleware-1006": "Internal error",
	"error-auth-middleware-1009": "Unauthorized",
	"error-auth-middleware-1010": "Subscription expired",
	"error-auth-middleware-1019": "Missing token",
	"error-auth-middleware-1020": "Invalid token",
	"error-auth-middleware-1021": "Internal error",

	// nonce / controller
	"error-nonce-controller-1000": "Token is incomplete",
	"error-nonce-controller-1001": "Token could not be minted",
	"error-nonce-controller-1002": "Token is required",
	"error-nonce-controller-1003": "Token not found",
	"error-nonce-controller-1004": "Token already used",
	"error-nonce-controller-1005": "Token verification failed",
}

// lookupMessage resolves a catalog entry. The boolean reports whether the
// code was known; unknown error codes are logged at warning severity.
func lookupMessage(result, domain, layer string, code int) (string, bool) {
	key := fmt.Sprintf("%s-%s-%s-%d", result, domain, layer, code)
	if msg, ok := messages[key]; ok {
		return msg, true
	}
	log.Printf("WARN: no message registered for %s", key)
	return genericErrorMessage, false
}
