// Package gateway exposes the broadcast engine over WebSocket JSON-RPC.
//
// Every connection is a session with its own notify.Engine registered on the ledger
// feed, so a slow client only delays its own notifications.
//
// Requests and responses:
//
//	-> {"id":1,"method":"subscribe_to_objects","params":{"callback":"acct","ids":["1.2.15"]}}
//	<- {"id":1,"result":null}
//
// Notifications are pushed as:
//
//	<- {"method":"notice","params":{"callback":"acct","notification":{...}}}
//
// Methods: login, get_objects, subscribe_to_objects, unsubscribe_from_objects,
// subscribe_to_market, unsubscribe_from_market, cancel_all_subscriptions.
package gateway
