package config

// DefaultYAML is the commented configuration template written by
// `guestbook config init`. It mirrors Default().
const DefaultYAML = `# Rotary audio guestbook configuration.
#
# Durations accept Go syntax: 100ms, 2s, 1m30s.

audio:
  # ALSA device passed to arecord/aplay (-D).
  device: hw:0,0
  # Sample format passed to arecord (-f).
  format: cd
  # Container type passed to arecord (-t) and used for recording filenames.
  file_type: wav
  sample_rate: 44100
  channels: 1
  # Mixer control adjusted with amixer before playback.
  mixer_control: Speaker

recording:
  # Where finished messages are written before archiving.
  directory: ~/guestbook/recordings
  # Maximum message length in seconds. Also passed to arecord -d as a
  # redundant bound.
  limit: 30

sounds:
  greeting:
    file: ~/guestbook/sounds/greeting.wav
    volume: 1.0
    start_delay: 0s
  beep:
    file: ~/guestbook/sounds/beep.wav
    volume: 1.0
    start_delay: 0s
    # Whether the beep is audible at the start of the recorded message.
    # The greeting, beep, record-start order is the same either way.
    include_in_message: true
  time_exceeded:
    file: ~/guestbook/sounds/time_exceeded.wav
    volume: 1.0
    start_delay: 0s

# Hook switch. type NC means the circuit is closed while the handset rests
# on the cradle. Set gpio to 0 to disable.
hook:
  gpio: 17
  type: NC
  invert: false
  bounce_time: 100ms

# Button that re-records the greeting while held. Set gpio to 0 to disable.
record_greeting:
  gpio: 27
  type: NC
  bounce_time: 100ms

# Button that powers the appliance off when held. Set gpio to 0 to disable.
shutdown:
  gpio: 22
  hold_time: 2s

archive:
  directory: ~/guestbook/archive

logging:
  level: info
  # Set to a path (e.g. /var/log/guestbook.log) to also log to a rotating
  # file.
  file: ""
  max_size_mb: 10
  max_backups: 5
`
