// Command curator runs content selection tasks once or as a daemon and
// inspects the series history they build up.
//
//	curator execute [task...]   run tasks now and print a summary
//	curator daemon              run scheduled tasks until interrupted
//	curator series ...          list, show, forget or set where a series begins
//	curator parse <title>       show how a title is understood
//	curator config ...          create, check or show the configuration
package main
