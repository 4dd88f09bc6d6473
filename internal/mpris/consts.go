package mpris

const (
	// PlayerNamespacePrefix identifies player service names among all bus participants.
	PlayerNamespacePrefix = "org.mpris.MediaPlayer2."

	playerPath      = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"

	busName      = "org.freedesktop.DBus"
	busInterface = "org.freedesktop.DBus"

	propertiesInterface = "org.freedesktop.DBus.Properties"

	methodListNames     = busInterface + ".ListNames"
	methodGetNameOwner  = busInterface + ".GetNameOwner"
	methodPropertiesGet = propertiesInterface + ".Get"
	methodPropertiesSet = propertiesInterface + ".Set"

	methodPrevious  = playerInterface + ".Previous"
	methodPlayPause = playerInterface + ".PlayPause"
	methodNext      = playerInterface + ".Next"

	memberNameOwnerChanged  = "NameOwnerChanged"
	memberPropertiesChanged = "PropertiesChanged"

	signalNameOwnerChanged  = busInterface + "." + memberNameOwnerChanged
	signalPropertiesChanged = propertiesInterface + "." + memberPropertiesChanged

	propertyMetadata = "Metadata"
	propertyVolume   = "Volume"

	metadataArtist = "xesam:artist"
	metadataTitle  = "xesam:title"
)
