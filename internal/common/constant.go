package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// RefreshTokenCookieName is the cookie that transports the refresh token
// between the browser and the HTTP API.
const RefreshTokenCookieName = "refresh_token"
