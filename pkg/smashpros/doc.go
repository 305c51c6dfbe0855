// Package smashpros provides a client for the smashpros.gg users API.
//
// The relay treats the API as an opaque data source: responses are returned
// as raw JSON so callers can forward them without adding, removing or
// renaming fields.
//
// # Basic Usage
//
//	client := smashpros.NewClient(&smashpros.ClientConfig{
//	    BaseURL: smashpros.DefaultBaseURL,
//	    Timeout: 10 * time.Second,
//	})
//
//	// Raw profile for a player tag
//	resp, err := client.PlayerData(ctx, "mkleo")
//
//	// Raw wins/losses for a numeric player ID
//	resp, err := client.PlayerWinsLosses(ctx, "1234")
//
// # Error Handling
//
// Transport failures and non-JSON bodies are returned as *Error:
//
//	resp, err := client.PlayerData(ctx, tag)
//	var apiErr *smashpros.Error
//	if errors.As(err, &apiErr) {
//	    switch apiErr.Kind {
//	    case smashpros.KindUnavailable:
//	        // upstream could not be reached
//	    case smashpros.KindInvalidResponse:
//	        // upstream answered with something that is not JSON
//	    }
//	}
//
// A non-2xx status with a JSON body is not an error; it is returned in
// Response.StatusCode and Response.OK reports false.
package smashpros
